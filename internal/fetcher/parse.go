package fetcher

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"lfp_bot/internal/catalog"
	"lfp_bot/internal/model"
)

var errNotJSON = errors.New("body is not valid JSON")

// Parse converts a response body into a snapshot.
//
// A blank body is an empty-response error and invalid JSON is an
// invalid-payload error. Anything else is accepted: a payload without a
// "chars" array is an empty snapshot, and record fields that are missing or
// of the wrong type are defaulted.
func Parse(body []byte) (model.Snapshot, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &Error{Kind: KindEmptyResponse}
	}
	if !json.Valid(body) {
		return nil, &Error{Kind: KindInvalidPayload, Err: errNotJSON}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return model.Snapshot{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(envelope["chars"], &items); err != nil {
		return model.Snapshot{}, nil
	}

	snap := make(model.Snapshot, 0, len(items))
	for i, raw := range items {
		snap = append(snap, parseRecord(i, raw))
	}
	return snap, nil
}

func parseRecord(pos int, raw json.RawMessage) model.Record {
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)

	r := model.Record{
		Name:      asString(fields["charname"]),
		Avatar:    asString(fields["avatar"]),
		Nation:    asString(fields["nation"]),
		Rank:      asInt(fields["rank"]),
		MainJob:   catalog.NormalizeJob(asString(fields["mjob"])),
		MainLevel: asInt(fields["mlvl"]),
		SubJob:    catalog.NormalizeJob(asString(fields["sjob"])),
		SubLevel:  asInt(fields["slvl"]),
		Message:   asString(fields["seacomMessage"]),
		Channel:   model.ChannelType(asInt(fields["seacomType"])),
		Timestamp: asString(fields["timestamp"]),
	}

	if id, ok := identity(fields["charid"]); ok {
		r.Identity = id
	} else {
		r.Identity = model.Identity("#" + strconv.Itoa(pos))
		r.PositionalIdentity = true
	}

	r.OtherJobs = otherJobs(fields["jobs"], r.MainJob, r.SubJob)
	return r
}

func identity(v any) (model.Identity, bool) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return "", false
		}
		return model.Identity(strconv.FormatInt(int64(x), 10)), true
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return "", false
		}
		return model.Identity(x), true
	}
	return "", false
}

func otherJobs(v any, main, sub model.Job) map[model.Job]int {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[model.Job]int)
	for k, lvl := range m {
		job := catalog.NormalizeJob(k)
		level := asInt(lvl)
		if job == "" || job == main || job == sub || level <= 0 {
			continue
		}
		out[job] = level
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
