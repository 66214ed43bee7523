package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// PushedItem records an item delivered into a dedup namespace (for example "toread").
type PushedItem struct {
	Namespace string    `db:"namespace" json:"namespace"`
	ItemID    string    `db:"item_id" json:"item_id"`
	Source    string    `db:"source" json:"source"`
	Title     string    `db:"title" json:"title"`
	URL       string    `db:"url" json:"url"`
	PushedAt  time.Time `db:"pushed_at" json:"pushed_at"`
}

// RunStat is the persisted form of one stats row printed at the end of a save run.
type RunStat struct {
	ID         string         `db:"id" json:"id"`
	RunID      string         `db:"run_id" json:"run_id"`
	JobID      string         `db:"job_id" json:"job_id"`
	Label      string         `db:"label" json:"label"`
	Extra      string         `db:"extra" json:"extra,omitempty"`
	Target     string         `db:"target" json:"target,omitempty"`
	CountsJSON string         `db:"counts" json:"-"`
	Counts     map[string]int `db:"-" json:"counts"`
	Pushed     int            `db:"pushed" json:"pushed"`
	Failed     int            `db:"failed" json:"failed"`
	Skipped    int            `db:"skipped" json:"skipped"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// RunStatListOpts controls run stat listing.
type RunStatListOpts struct {
	Label string
	RunID string
	Limit int
}

// Store is the persistence interface.
type Store interface {
	LastEdited(ctx context.Context, source, list string) (time.Time, error)
	SetLastEdited(ctx context.Context, source, list string, t time.Time) error

	PushedIDs(ctx context.Context, namespace string, ids []string) (map[string]bool, error)
	MarkPushed(ctx context.Context, items []PushedItem) error
	RecentPushed(ctx context.Context, namespace string, since time.Time, limit int) ([]PushedItem, error)

	AddRunStats(ctx context.Context, stats []RunStat) error
	ListRunStats(ctx context.Context, opts RunStatListOpts) ([]RunStat, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under the HTTP trigger
	db.SetMaxOpenConns(1)

	if _, err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LastEdited returns the stored watermark for source/list, or the zero time.
func (s *SQLiteStore) LastEdited(ctx context.Context, source, list string) (time.Time, error) {
	query, args, err := sq.Select("last_edited_at").
		From("sync_state").
		Where(sq.Eq{"source": source, "list": list}).
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("build query: %w", err)
	}

	var t time.Time
	err = s.db.GetContext(ctx, &t, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last edited %s/%s: %w", source, list, err)
	}
	return t, nil
}

// SetLastEdited moves the watermark forward. Older or zero times are ignored.
func (s *SQLiteStore) SetLastEdited(ctx context.Context, source, list string, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	current, err := s.LastEdited(ctx, source, list)
	if err != nil {
		return err
	}
	if !t.After(current) {
		return nil
	}

	query, args, err := sq.Insert("sync_state").
		Columns("source", "list", "last_edited_at", "updated_at").
		Values(source, list, t.UTC(), time.Now().UTC()).
		Suffix("ON CONFLICT(source, list) DO UPDATE SET last_edited_at = excluded.last_edited_at, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set last edited %s/%s: %w", source, list, err)
	}
	return nil
}

// PushedIDs reports which of ids were already pushed into namespace.
func (s *SQLiteStore) PushedIDs(ctx context.Context, namespace string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(ids) == 0 {
		return found, nil
	}

	query, args, err := sq.Select("item_id").
		From("pushed_items").
		Where(sq.Eq{"namespace": namespace, "item_id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []string
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list pushed ids: %w", err)
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

// MarkPushed records items in their namespace. Re-pushing an item refreshes its row.
func (s *SQLiteStore) MarkPushed(ctx context.Context, items []PushedItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		pushedAt := it.PushedAt
		if pushedAt.IsZero() {
			pushedAt = time.Now()
		}
		query, args, err := sq.Insert("pushed_items").
			Columns("namespace", "item_id", "source", "title", "url", "pushed_at").
			Values(it.Namespace, it.ItemID, it.Source, it.Title, it.URL, pushedAt.UTC()).
			Suffix("ON CONFLICT(namespace, item_id) DO UPDATE SET title = excluded.title, url = excluded.url, pushed_at = excluded.pushed_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("mark pushed %s: %w", it.ItemID, err)
		}
	}
	return tx.Commit()
}

// RecentPushed lists items pushed into namespace since the given time, newest first.
func (s *SQLiteStore) RecentPushed(ctx context.Context, namespace string, since time.Time, limit int) ([]PushedItem, error) {
	if limit <= 0 {
		limit = 200
	}
	qb := sq.Select("namespace", "item_id", "source", "title", "url", "pushed_at").
		From("pushed_items").
		Where(sq.Eq{"namespace": namespace}).
		OrderBy("pushed_at DESC").
		Limit(uint64(limit))
	if !since.IsZero() {
		qb = qb.Where(sq.GtOrEq{"pushed_at": since.UTC()})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []PushedItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list recent pushed: %w", err)
	}
	return items, nil
}

// AddRunStats inserts stats, assigning IDs and timestamps where missing.
func (s *SQLiteStore) AddRunStats(ctx context.Context, stats []RunStat) error {
	if len(stats) == 0 {
		return nil
	}

	qb := sq.Insert("run_stats").
		Columns("id", "run_id", "job_id", "label", "extra", "target", "counts", "pushed", "failed", "skipped", "created_at")
	now := time.Now().UTC()
	for i := range stats {
		st := &stats[i]
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		if st.CreatedAt.IsZero() {
			st.CreatedAt = now
		}
		counts, err := json.Marshal(st.Counts)
		if err != nil {
			return fmt.Errorf("marshal counts: %w", err)
		}
		st.CountsJSON = string(counts)
		qb = qb.Values(st.ID, st.RunID, st.JobID, st.Label, st.Extra, st.Target,
			st.CountsJSON, st.Pushed, st.Failed, st.Skipped, st.CreatedAt.UTC())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run stats: %w", err)
	}
	return nil
}

// ListRunStats returns recorded stats, newest first.
func (s *SQLiteStore) ListRunStats(ctx context.Context, opts RunStatListOpts) ([]RunStat, error) {
	qb := sq.Select("id", "run_id", "job_id", "label", "extra", "target", "counts", "pushed", "failed", "skipped", "created_at").
		From("run_stats").
		OrderBy("created_at DESC", "rowid DESC")

	if opts.Label != "" {
		qb = qb.Where(sq.Eq{"label": opts.Label})
	}
	if opts.RunID != "" {
		qb = qb.Where(sq.Eq{"run_id": opts.RunID})
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	qb = qb.Limit(uint64(limit))

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var stats []RunStat
	if err := s.db.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("list run stats: %w", err)
	}
	for i := range stats {
		if err := json.Unmarshal([]byte(stats[i].CountsJSON), &stats[i].Counts); err != nil {
			return nil, fmt.Errorf("decode counts for %s: %w", stats[i].ID, err)
		}
	}
	return stats, nil
}
