package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/curator/internal/config"
	"github.com/elonfeng/curator/internal/logging"
	"github.com/elonfeng/curator/internal/pipeline"
	"github.com/elonfeng/curator/internal/scheduler"
	"github.com/elonfeng/curator/internal/store"
	"github.com/elonfeng/curator/pkg/cache"
	"github.com/elonfeng/curator/pkg/content"
	"github.com/elonfeng/curator/pkg/extract"
	"github.com/elonfeng/curator/pkg/llm"
	"github.com/elonfeng/curator/pkg/notion"
	"github.com/elonfeng/curator/pkg/operator"
	"github.com/elonfeng/curator/pkg/push"
	"github.com/elonfeng/curator/pkg/score"
	"github.com/elonfeng/curator/pkg/server"
	"github.com/elonfeng/curator/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app holds what every command opens.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.SQLiteStore
	cache  *cache.Tiered
	ops    pipeline.Operators
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db}
	a.cache = cache.New(ctx, cfg.Redis.URL, cfg.Redis.ParseTTL(), 10000, logger)

	a.ops, err = buildOperators(cfg, db, a.cache, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	_ = a.db.Close()
}

func buildSources(cfg *config.Config, nc *notion.Client, logger *slog.Logger) map[content.Kind]source.Source {
	article := cfg.Sources.Article
	extractor := extract.New(article.UserAgent, article.MaxContentChars)

	feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
	for i, f := range cfg.Sources.RSS.Feeds {
		feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
	}

	yt := cfg.Sources.YouTube
	return map[content.Kind]source.Source{
		content.KindArticle: source.NewArticle(nc, extractor, cfg.Notion.InboxArticleDB, logger),
		content.KindYoutube: source.NewYouTube(source.YouTubeOptions{
			Notion:    nc,
			InboxDB:   cfg.Notion.InboxYoutubeDB,
			APIKey:    yt.APIKey,
			Channels:  yt.Channels,
			Languages: yt.Languages,
			MaxVideos: yt.MaxVideos,
		}, logger),
		content.KindRSS: source.NewRSS(feeds, cfg.Sources.RSS.ParseMaxAge(), cfg.Sources.RSS.Exclude, logger),
	}
}

func buildPushManager(cfg *config.Config, nc *notion.Client, logger *slog.Logger) *push.Manager {
	var targets []push.Target

	if cfg.Notion.Token != "" && cfg.Notion.ToReadDB != "" {
		targets = append(targets, push.NewNotion(nc, cfg.Notion.ToReadDB, logger))
	}
	if cfg.Targets.Slack.WebhookURL != "" {
		targets = append(targets, push.NewSlack(cfg.Targets.Slack.WebhookURL))
	}
	if cfg.Targets.Discord.WebhookURL != "" {
		targets = append(targets, push.NewDiscord(cfg.Targets.Discord.WebhookURL))
	}
	if cfg.Targets.Webhook.URL != "" {
		targets = append(targets, push.NewWebhook(cfg.Targets.Webhook.URL, cfg.Targets.Webhook.Secret))
	}

	return push.NewManager(logger, targets...)
}

func buildOperators(cfg *config.Config, db store.Store, c *cache.Tiered, logger *slog.Logger) (pipeline.Operators, error) {
	nc := notion.New(cfg.Notion.Token, cfg.Notion.BaseURL, cfg.Notion.RateLimit)

	var completer llm.Completer
	if cfg.LLM.Enabled() {
		var err error
		completer, err = llm.New(llm.Options{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("build llm client: %w", err)
		}
	} else {
		logger.Info("llm disabled, using extractive summaries and heuristic scores")
	}

	deps := operator.Deps{
		Store:  db,
		Pusher: buildPushManager(cfg, nc, logger),
		Logger: logger,
	}
	interest := score.NewInterest(cfg.Interests.Keywords, cfg.Interests.Exclude)
	if completer != nil {
		logger.Info("llm enabled", "provider", cfg.LLM.Provider, "model", completer.Model())
		deps.Scorer = score.NewScorer(llm.NewEvaluator(completer, 0), interest, c, logger)
		deps.Summarizer = llm.NewSummarizer(completer, cfg.LLM.MaxContentChars)
	} else {
		deps.Scorer = score.NewScorer(nil, interest, c, logger)
	}

	sources := buildSources(cfg, nc, logger)
	ops := make(pipeline.Operators, len(sources))
	for _, kind := range content.AllKinds() {
		op, err := operator.New(kind, sources[kind], deps)
		if err != nil {
			return nil, err
		}
		ops[kind] = op
	}
	return ops, nil
}

func parseOptions(validateTargets bool) (*config.RunOptions, error) {
	opts, err := raw.Parse(time.Now())
	if err != nil {
		return nil, err
	}
	if validateTargets {
		if err := push.ValidateTargets(opts.Targets); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func runSync(ctx context.Context) error {
	opts, err := parseOptions(false)
	if err != nil {
		return err
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := pipeline.NewSyncer(a.ops, a.logger).Run(ctx, opts)
	if err != nil {
		return err
	}
	for _, r := range results {
		a.logger.Info("snapshot written", "source", r.Source, "items", r.Items, "path", r.Path)
	}
	return nil
}

func runSave(ctx context.Context) error {
	opts, err := parseOptions(true)
	if err != nil {
		return err
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = pipeline.NewSaver(a.ops, a.db, os.Stdout, a.logger).Run(ctx, opts)
	return err
}

func runStats(ctx context.Context, jsonOutput bool, label string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	stats, err := db.ListRunStats(ctx, store.RunStatListOpts{Label: label, RunID: raw.RunID, Limit: limit})
	if err != nil {
		return fmt.Errorf("list stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	if len(stats) == 0 {
		fmt.Println("no stats recorded (run: curator sync && curator save)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tRUN\tLABEL\tTARGET\tRAW\tPUSHED\tFAILED")
	for _, s := range stats {
		target := s.Target
		if target == "" {
			target = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			s.CreatedAt.Format(time.RFC3339), s.RunID, s.Label, target,
			s.Counts[operator.StageRaw], s.Pushed, s.Failed)
	}
	return w.Flush()
}

func runServe(ctx context.Context, port int) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}
	srv := server.New(a.db, pipeline.NewSyncer(a.ops, a.logger), raw, port, nil, a.logger)
	return srv.ListenAndServe(ctx)
}

func runDaemon(ctx context.Context, port int) error {
	if _, err := parseOptions(true); err != nil {
		return err
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	// scheduled and manual runs share one lock
	var running sync.Mutex
	syncer := pipeline.NewSyncer(a.ops, a.logger)
	saver := pipeline.NewSaver(a.ops, a.db, os.Stdout, a.logger)
	sched := scheduler.New(syncer, saver, raw, a.cfg.Schedule.ParseInterval(), &running, a.logger)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("scheduler stopped", "error", err)
		}
	}()

	srv := server.New(a.db, syncer, raw, port, &running, a.logger)
	err = srv.ListenAndServe(ctx)

	// the store must outlive the scheduler's in-flight run
	cancel()
	wg.Wait()
	return err
}
