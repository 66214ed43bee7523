package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elonfeng/curator/pkg/content"
)

// ErrInvalidBool is returned by ParseBool for values outside the accepted spellings.
var ErrInvalidBool = errors.New("invalid boolean value")

// DefaultSources is used when neither --sources nor CONTENT_SOURCES is set.
const DefaultSources = "Article,Youtube,RSS"

// RunOptions is the typed form of the CLI flags shared by sync and save.
// It is built once per invocation and passed into the pipeline.
type RunOptions struct {
	Prefix     string
	Start      time.Time
	RunID      string
	JobID      string
	DataFolder string
	Sources    []content.Kind
	Unknown    []string // source names that did not parse; skipped with a warning

	// save only
	Targets        []string
	TopicsTopK     int
	CategoriesTopK int
	Dedup          bool
	MinScoreToRank float64
	MaxDistance    float64
}

// RawOptions holds flag values exactly as given on the command line.
type RawOptions struct {
	Prefix         string
	Start          string
	RunID          string
	JobID          string
	DataFolder     string
	Sources        string
	Targets        string
	TopicsTopK     int
	CategoriesTopK int
	Dedup          string
	MinScoreToRank float64
	MaxDistance    float64
}

// Parse validates raw flag values and converts them into RunOptions.
func (r RawOptions) Parse(now time.Time) (*RunOptions, error) {
	opts := &RunOptions{
		Prefix:         r.Prefix,
		RunID:          r.RunID,
		JobID:          r.JobID,
		DataFolder:     r.DataFolder,
		Targets:        SplitList(r.Targets),
		TopicsTopK:     r.TopicsTopK,
		CategoriesTopK: r.CategoriesTopK,
		MinScoreToRank: r.MinScoreToRank,
		MaxDistance:    r.MaxDistance,
	}

	start, err := ParseStart(r.Start, now)
	if err != nil {
		return nil, err
	}
	opts.Start = start

	sources := r.Sources
	if strings.TrimSpace(sources) == "" {
		sources = DefaultSources
	}
	opts.Sources, opts.Unknown = content.ParseKinds(sources)

	if r.Dedup == "" {
		opts.Dedup = true
	} else if opts.Dedup, err = ParseBool(r.Dedup); err != nil {
		return nil, fmt.Errorf("parse --dedup: %w", err)
	}

	if r.MaxDistance < 0 || r.MaxDistance > 1 {
		return nil, fmt.Errorf("--max-distance must be within [0,1], got %v", r.MaxDistance)
	}
	if r.TopicsTopK < 0 || r.CategoriesTopK < 0 {
		return nil, fmt.Errorf("top-k values must not be negative")
	}
	if opts.DataFolder == "" {
		opts.DataFolder = "./data"
	}
	return opts, nil
}

// ParseBool accepts yes/true/t/y/1 and no/false/f/n/0, case-insensitively.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "t", "y", "1":
		return true, nil
	case "no", "false", "f", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
}

// SplitList splits a comma separated value, trimming spaces and dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseStart parses --start. An empty value means now; a value without a zone is local time.
func ParseStart(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse --start %q: expected ISO-8601 timestamp", s)
}
