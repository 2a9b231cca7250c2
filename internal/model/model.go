// Package model defines the domain types used across the application.
package model

// Identity is the key used to recognize the same listing across polls.
type Identity string

// Job is a job code such as "WHM". Valid codes are defined by the catalog.
type Job string

// ChannelType is the chat channel a listing's message was posted in.
type ChannelType int

// Record is one character's "looking for party" listing.
type Record struct {
	Identity Identity
	// PositionalIdentity is set when the listing had no usable charid and
	// Identity was derived from its position in the snapshot. Such identities
	// can be attributed to a different character if the server reorders results.
	PositionalIdentity bool

	Name      string
	Avatar    string
	Nation    string
	Rank      int
	MainJob   Job
	MainLevel int
	SubJob    Job
	SubLevel  int
	OtherJobs map[Job]int
	Message   string
	Channel   ChannelType
	Timestamp string

	IsNew bool
}

// Snapshot is the ordered set of listings returned by one poll.
type Snapshot []Record

// Identities returns the set of identities present in the snapshot.
func (s Snapshot) Identities() map[Identity]struct{} {
	ids := make(map[Identity]struct{}, len(s))
	for _, r := range s {
		ids[r.Identity] = struct{}{}
	}
	return ids
}

// SortKey selects the column records are ordered by.
type SortKey string

// Supported sort keys.
const (
	SortNone     SortKey = ""
	SortLevel    SortKey = "level"
	SortSubLevel SortKey = "sublevel"
	SortName     SortKey = "name"
)

// SortDirection is the ordering direction.
type SortDirection string

// Supported sort directions.
const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// FilterConfig is the user's current view configuration.
// A zero MinLevel or MaxLevel means the bound is unset; an empty job list
// means no restriction.
type FilterConfig struct {
	SearchTerm string `json:"search_term,omitempty"`
	MinLevel   int    `json:"min_level,omitempty"`
	MaxLevel   int    `json:"max_level,omitempty"`
	MainJobs   []Job  `json:"main_jobs,omitempty"`
	SubJobs    []Job  `json:"sub_jobs,omitempty"`
	// AnyJobs matches when either the main or the sub job is listed.
	AnyJobs []Job `json:"any_jobs,omitempty"`

	AlertsEnabled bool `json:"alerts_enabled"`

	SortKey       SortKey       `json:"sort_key,omitempty"`
	SortDirection SortDirection `json:"sort_direction,omitempty"`
}

// DefaultFilterConfig returns the configuration used at startup.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		AlertsEnabled: true,
		SortDirection: Ascending,
	}
}
