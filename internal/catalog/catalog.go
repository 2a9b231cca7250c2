// Package catalog holds the game constants that vary between server
// revisions: the level ceiling, the job codes and the channel labels.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lfp_bot/internal/model"
)

// PlaceholderLabel is shown for channel types the catalog does not know.
const PlaceholderLabel = "-"

// Catalog describes the jobs, level ceiling and channel labels of a server.
type Catalog struct {
	LevelCap int                          `yaml:"level_cap"`
	Jobs     []model.Job                  `yaml:"jobs"`
	Channels map[model.ChannelType]string `yaml:"channels"`
}

// Default returns the HorizonXI catalog: level cap 75 and 22 job codes.
func Default() *Catalog {
	return &Catalog{
		LevelCap: 75,
		Jobs: []model.Job{
			"WAR", "MNK", "WHM", "BLM", "RDM", "THF", "PLD", "DRK",
			"BST", "BRD", "RNG", "SAM", "NIN", "DRG", "SMN", "BLU",
			"COR", "PUP", "DNC", "SCH", "GEO", "RUN",
		},
		Channels: map[model.ChannelType]string{
			0: "-",
			1: "PT",
			2: "Alliance",
			3: "Linkshell",
			4: "Shout",
			5: "Yell",
			6: "Tell",
		},
	}
}

// Load reads a YAML catalog from path. Fields missing from the file keep
// their default values.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var raw Catalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := Default()
	if raw.LevelCap != 0 {
		if raw.LevelCap < 1 {
			return nil, fmt.Errorf("level_cap must be positive, got %d", raw.LevelCap)
		}
		c.LevelCap = raw.LevelCap
	}
	if len(raw.Jobs) > 0 {
		c.Jobs = make([]model.Job, 0, len(raw.Jobs))
		for _, j := range raw.Jobs {
			c.Jobs = append(c.Jobs, NormalizeJob(string(j)))
		}
	}
	if len(raw.Channels) > 0 {
		c.Channels = raw.Channels
	}
	return c, nil
}

// NormalizeJob converts user or wire input to the canonical job code form.
func NormalizeJob(s string) model.Job {
	return model.Job(strings.ToUpper(strings.TrimSpace(s)))
}

// HasJob reports whether j is one of the catalog's job codes.
func (c *Catalog) HasJob(j model.Job) bool {
	for _, known := range c.Jobs {
		if known == j {
			return true
		}
	}
	return false
}

// ChannelLabel returns the human label of a channel type. Unknown types map
// to PlaceholderLabel.
func (c *Catalog) ChannelLabel(t model.ChannelType) string {
	if label, ok := c.Channels[t]; ok && label != "" {
		return label
	}
	return PlaceholderLabel
}

// ParseJobs parses a list of job codes, rejecting codes the catalog does not know.
func (c *Catalog) ParseJobs(args []string) ([]model.Job, error) {
	var jobs []model.Job
	seen := make(map[model.Job]bool)
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			j := NormalizeJob(part)
			if !c.HasJob(j) {
				return nil, fmt.Errorf("unknown job %q", part)
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}
