// Package push delivers curated items to their destinations.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/elonfeng/curator/pkg/content"
)

// ErrUnknownTarget is returned for target names outside KnownTargets.
var ErrUnknownTarget = errors.New("unknown push target")

// KnownTargets lists every target name curator can push to.
var KnownTargets = []string{"notion", "slack", "discord", "webhook"}

// Report summarizes one push to one target.
type Report struct {
	Target    string
	Pushed    int
	Failed    int
	Skipped   int
	PushedIDs []string
	Refs      map[string]string // item ID -> destination reference, when the target returns one
}

func (r *Report) ok(id, ref string) {
	r.Pushed++
	r.PushedIDs = append(r.PushedIDs, id)
	if ref != "" {
		if r.Refs == nil {
			r.Refs = make(map[string]string)
		}
		r.Refs[id] = ref
	}
}

// Target delivers items to one destination. label names the source the items came from.
// Per-item failures are counted in the Report; an error means the target as a whole failed.
type Target interface {
	Name() string
	Push(ctx context.Context, label string, items []content.Item) (Report, error)
}

// ValidateTargets checks that every name is a known target.
func ValidateTargets(names []string) error {
	var unknown []string
	for _, n := range names {
		known := false
		for _, k := range KnownTargets {
			if n == k {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s (known: %s)", ErrUnknownTarget,
			strings.Join(unknown, ", "), strings.Join(KnownTargets, ", "))
	}
	return nil
}

// Manager pushes to the configured targets by name.
type Manager struct {
	targets map[string]Target
	logger  *slog.Logger
}

// NewManager creates a manager over the configured targets.
func NewManager(logger *slog.Logger, targets ...Target) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{targets: make(map[string]Target), logger: logger.With("component", "push")}
	for _, t := range targets {
		m.targets[t.Name()] = t
	}
	return m
}

// Configured reports whether a target with that name is registered.
func (m *Manager) Configured(name string) bool {
	_, ok := m.targets[name]
	return ok
}

// Push sends items to each named target in order. Every target is attempted;
// failures are joined into the returned error alongside the reports that succeeded.
func (m *Manager) Push(ctx context.Context, label string, items []content.Item, targets []string) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, name := range targets {
		t, ok := m.targets[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: target is not configured", name))
			continue
		}
		report, err := t.Push(ctx, label, items)
		report.Target = name
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		m.logger.Info("pushed", "target", name, "source", label,
			"pushed", report.Pushed, "failed", report.Failed, "skipped", report.Skipped)
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}
