package bot

import (
	"fmt"
	"strconv"
	"strings"

	"lfp_bot/internal/model"
)

// ParsePageArg parses a 1-based page number into a page index.
func ParsePageArg(args string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid page %q", args)
	}
	return n - 1, nil
}

// ParseLevelArgs parses "<min> <max>" or "<min>-<max>". Empty args clear
// both bounds. Either bound may be "any" or 0 to leave it unset.
func ParseLevelArgs(args string) (int, int, error) {
	s := strings.TrimSpace(args)
	if !strings.ContainsAny(s, " \t") {
		s = strings.Replace(s, "-", " ", 1)
	}
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("usage: /level <min> <max>")
	}
	lo, err := parseBound(parts[0])
	if err != nil {
		return 0, 0, err
	}
	hi, err := parseBound(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func parseBound(s string) (int, error) {
	if strings.EqualFold(s, "any") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid level %q", s)
	}
	return n, nil
}

// ParseSortArgs parses "<level|sublevel|name|none> [asc|desc]".
func ParseSortArgs(args string) (model.SortKey, model.SortDirection, error) {
	parts := strings.Fields(strings.ToLower(args))
	if len(parts) == 0 || len(parts) > 2 {
		return "", "", fmt.Errorf("usage: /sort <level|sublevel|name|none> [asc|desc]")
	}

	var key model.SortKey
	switch parts[0] {
	case "none":
		key = model.SortNone
	case string(model.SortLevel), string(model.SortSubLevel), string(model.SortName):
		key = model.SortKey(parts[0])
	default:
		return "", "", fmt.Errorf("invalid sort key %q, use: level, sublevel, name, none", parts[0])
	}

	dir := model.Ascending
	if len(parts) == 2 {
		switch parts[1] {
		case "asc":
			dir = model.Ascending
		case "desc":
			dir = model.Descending
		default:
			return "", "", fmt.Errorf("invalid direction %q, use: asc, desc", parts[1])
		}
	}
	return key, dir, nil
}

// ParseToggle parses on/off style arguments.
func ParseToggle(args string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("usage: on|off")
}

// ParsePageSize parses a page size argument. Allowed values are checked by
// the dashboard.
func ParsePageSize(args string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return 0, fmt.Errorf("invalid page size %q", args)
	}
	return n, nil
}
