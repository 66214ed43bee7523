package operator

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/elonfeng/curator/internal/config"
	"github.com/elonfeng/curator/internal/store"
	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/push"
)

// Stage names, in pipeline order.
const (
	StageRaw        = "raw"
	StageDeduped    = "deduped"
	StageScored     = "scored"
	StageFiltered   = "filtered"
	StageSummarized = "summarized"
	StageRanked     = "ranked"
)

// StageCount is the size of one stage's output.
type StageCount struct {
	Stage string
	Items int
}

// Stage names the output of a pipeline stage for CreateStats.
func Stage(name string, items []content.Item) StageCount {
	return StageCount{Stage: name, Items: len(items)}
}

// Stat summarizes one source's save run. A stat with an empty Target holds the
// stage counts; one stat per push target follows it.
type Stat struct {
	Label  string
	Extra  string
	RunID  string
	JobID  string
	Target string
	Stages []StageCount

	Pushed  int
	Failed  int
	Skipped int
}

// CreateStats builds the stats of one source: the pipeline counts, starting
// with the raw snapshot size, then one entry per push report.
func CreateStats(opts *config.RunOptions, label, extra string, raw content.Collection, reports []push.Report, stages ...StageCount) []Stat {
	var runID, jobID string
	if opts != nil {
		runID, jobID = opts.RunID, opts.JobID
	}

	counts := append([]StageCount{{Stage: StageRaw, Items: len(raw)}}, stages...)
	stats := []Stat{{Label: label, Extra: extra, RunID: runID, JobID: jobID, Stages: counts}}
	for _, r := range reports {
		stats = append(stats, Stat{
			Label:   label,
			Extra:   extra,
			RunID:   runID,
			JobID:   jobID,
			Target:  r.Target,
			Pushed:  r.Pushed,
			Failed:  r.Failed,
			Skipped: r.Skipped,
		})
	}
	return stats
}

// Count returns the item count of a stage.
func (s Stat) Count(stage string) (int, bool) {
	for _, c := range s.Stages {
		if c.Stage == stage {
			return c.Items, true
		}
	}
	return 0, false
}

// Print writes the stat as a small table.
func (s Stat) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	title := s.Label
	if s.Extra != "" {
		title += " (" + s.Extra + ")"
	}
	if s.Target != "" {
		fmt.Fprintf(tw, "[%s] push -> %s\n", title, s.Target)
		fmt.Fprintf(tw, "  pushed\t%d\n", s.Pushed)
		fmt.Fprintf(tw, "  failed\t%d\n", s.Failed)
		fmt.Fprintf(tw, "  skipped\t%d\n", s.Skipped)
		return tw.Flush()
	}

	fmt.Fprintf(tw, "[%s] pipeline\n", title)
	for _, c := range s.Stages {
		fmt.Fprintf(tw, "  %s\t%d\n", c.Stage, c.Items)
	}
	return tw.Flush()
}

// RunStat converts the stat into its stored form.
func (s Stat) RunStat() store.RunStat {
	counts := make(map[string]int, len(s.Stages))
	for _, c := range s.Stages {
		counts[c.Stage] = c.Items
	}
	return store.RunStat{
		RunID:   s.RunID,
		JobID:   s.JobID,
		Label:   s.Label,
		Extra:   s.Extra,
		Target:  s.Target,
		Counts:  counts,
		Pushed:  s.Pushed,
		Failed:  s.Failed,
		Skipped: s.Skipped,
	}
}
