// Package app assembles the engine's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/telhawk-intel/common/config"
	"github.com/telhawk-systems/telhawk-intel/common/logging"
	natsclient "github.com/telhawk-systems/telhawk-intel/common/messaging/nats"
	"github.com/telhawk-systems/telhawk-intel/internal/cache"
	"github.com/telhawk-systems/telhawk-intel/internal/classifier"
	"github.com/telhawk-systems/telhawk-intel/internal/dlq"
	"github.com/telhawk-systems/telhawk-intel/internal/enrich"
	"github.com/telhawk-systems/telhawk-intel/internal/handlers"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
	"github.com/telhawk-systems/telhawk-intel/internal/pipeline"
	"github.com/telhawk-systems/telhawk-intel/internal/router"
	"github.com/telhawk-systems/telhawk-intel/internal/service"
	"github.com/telhawk-systems/telhawk-intel/internal/sink"
	"github.com/telhawk-systems/telhawk-intel/internal/source"
	"github.com/telhawk-systems/telhawk-intel/internal/sourcestats"
)

// App holds the wired engine. Close releases every connection it opened.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Classifier *classifier.Classifier
	Enricher   *enrich.Service
	Router     *router.Router
	Sink       *sink.Multi
	DropDir    *source.DropDir
	DLQ        *dlq.Queue
	Pipeline   *pipeline.Pipeline
	DryRun     *pipeline.Pipeline
	Processor  *service.Processor
	Sources    *sourcestats.Client
	Checks     map[string]handlers.Checker

	redis   *redis.Client
	nats    *natsclient.Client
	closers []func() error
}

// Options selects which parts of the engine are built.
type Options struct {
	// Sinks overrides cfg.Sinks.Enabled when non-nil.
	Sinks []string
	// SkipSinks builds a routing-only engine (dry runs, lookups).
	SkipSinks bool
}

// New builds the engine described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Checks: map[string]handlers.Checker{}}

	if err := a.buildClassifier(); err != nil {
		return nil, a.abort(err)
	}
	if err := a.buildEnricher(ctx); err != nil {
		return nil, a.abort(err)
	}

	bases := router.DefaultHomeBases()
	if cfg.Classifier.HomeBases != "" {
		loaded, err := router.LoadHomeBases(cfg.Classifier.HomeBases)
		if err != nil {
			return nil, a.abort(err)
		}
		bases = loaded
	}
	a.Router = router.New(a.Enricher, a.Classifier, bases, logger)
	a.DryRun = pipeline.New(a.Router, nil, cfg.Pipeline.Workers, logger)

	if opts.SkipSinks {
		return a, nil
	}

	enabled := cfg.Sinks.Enabled
	if opts.Sinks != nil {
		enabled = opts.Sinks
	}
	if err := a.buildSinks(enabled); err != nil {
		return nil, a.abort(err)
	}
	if err := a.buildDLQ(); err != nil {
		return nil, a.abort(err)
	}

	drop, err := source.NewDropDir(cfg.Pipeline.DropDir, cfg.Pipeline.ArchiveDir, cfg.Pipeline.FileExtension)
	if err != nil {
		return nil, a.abort(err)
	}
	a.DropDir = drop
	a.Pipeline = pipeline.New(a.Router, a.Sink, cfg.Pipeline.Workers, logger)

	var dlqWriter dlq.Writer
	if a.DLQ != nil {
		dlqWriter = a.DLQ
	} else if w := a.natsDLQ(); w != nil {
		dlqWriter = w
	}
	a.Processor = service.NewProcessor(drop, a.Pipeline, dlqWriter, logger)

	if cfg.SourceStats.Enabled {
		if err := a.buildSourceStats(ctx); err != nil {
			return nil, a.abort(err)
		}
	}
	return a, nil
}

func (a *App) buildSourceStats(ctx context.Context) error {
	client, err := a.redisClient(ctx)
	if err != nil {
		return err
	}
	instanceID := a.Config.SourceStats.InstanceID
	if instanceID == "" {
		instanceID, _ = os.Hostname()
	}
	a.Sources = sourcestats.NewClient(client, instanceID)
	collector := sourcestats.NewCollector(a.Sources, a.Config.SourceStats.FlushInterval, a.Logger)
	a.closers = append(a.closers, collector.Stop)
	a.Processor.WithRecorder(collector)
	return nil
}

func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	cfg := a.Config.Redis
	client, err := cache.NewRedisClient(ctx, cfg.URL, cfg.MaxRetries, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	a.Checks["redis"] = redisCheck(client)
	return client, nil
}

func (a *App) buildClassifier() error {
	if a.Config.Classifier.SectorTable == "" {
		a.Classifier = classifier.Default()
		return nil
	}
	cls, err := classifier.Load(a.Config.Classifier.SectorTable)
	if err != nil {
		return err
	}
	a.Classifier = cls
	return nil
}

func (a *App) buildEnricher(ctx context.Context) error {
	cfg := a.Config
	owners, places, err := a.buildCaches(ctx)
	if err != nil {
		return err
	}

	httpClient := enrich.NewHTTPClient()
	rdap := enrich.NewRDAPClient(cfg.Enrichment.RDAPURL, cfg.Enrichment.UserAgent, cfg.Enrichment.OwnershipTimeout, httpClient)
	origin := enrich.NewCymruResolver(cfg.Enrichment.CymruServer, cfg.Enrichment.OwnershipTimeout)
	gazetteer := enrich.NewNominatim(cfg.Enrichment.NominatimURL, cfg.Enrichment.UserAgent, cfg.Enrichment.GeocodeTimeout, httpClient)

	var graph enrich.KnowledgeGraph
	if cfg.Enrichment.WikidataEnabled {
		graph = enrich.NewWikidata(
			cfg.Enrichment.WikidataURL,
			cfg.Enrichment.UserAgent,
			cfg.Enrichment.WikidataTimeout,
			enrich.NewThrottle(cfg.Enrichment.WikidataThrottle),
			httpClient,
		)
	}

	a.Enricher = enrich.NewService(enrich.NewWhoisRegistry(rdap, origin), gazetteer, graph, owners, places, a.Logger)
	return nil
}

func (a *App) buildCaches(ctx context.Context) (cache.Store[model.Ownership], cache.Store[model.Location], error) {
	cfg := a.Config
	switch cfg.Cache.Backend {
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedis[model.Ownership](client, cfg.Cache.KeyPrefix, "ip", cfg.Cache.TTL),
			cache.NewRedis[model.Location](client, cfg.Cache.KeyPrefix, "geo", cfg.Cache.TTL),
			nil
	default:
		return cache.NewMemory[model.Ownership](cfg.Cache.TTL, cfg.Cache.MaxEntries),
			cache.NewMemory[model.Location](cfg.Cache.TTL, cfg.Cache.MaxEntries),
			nil
	}
}

func redisCheck(client *redis.Client) handlers.Checker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func (a *App) buildSinks(enabled []string) error {
	cfg := a.Config
	var sinks []sink.Sink
	for _, name := range enabled {
		switch name {
		case "influx":
			influx := sink.NewInflux(sink.InfluxConfig{
				URL:     cfg.Influx.URL,
				Token:   cfg.Influx.Token,
				Org:     cfg.Influx.Org,
				Bucket:  cfg.Influx.Bucket,
				Timeout: cfg.Influx.Timeout,
			})
			a.Checks["influx"] = influx.Ping
			sinks = append(sinks, influx)
		case "nats":
			client, err := a.natsClient()
			if err != nil {
				return err
			}
			sinks = append(sinks, sink.NewPublisher(client, cfg.Sinks.Subject).SplitByMeasurement(cfg.Sinks.SplitByMeasurement))
		case "stdout":
			sinks = append(sinks, sink.NewStdout())
		case "file":
			f, err := sink.NewFile(cfg.Sinks.File)
			if err != nil {
				return err
			}
			sinks = append(sinks, f)
		default:
			return fmt.Errorf("unknown sink %q", name)
		}
	}
	if len(sinks) == 0 {
		return sink.ErrNoSinks
	}
	a.Sink = sink.NewMulti(a.Logger, sinks...)
	a.closers = append(a.closers, a.Sink.Close)
	return nil
}

func (a *App) buildDLQ() error {
	cfg := a.Config.DLQ
	if !cfg.Enabled || cfg.Backend == "nats" {
		return nil
	}
	queue, err := dlq.NewQueue(cfg.BasePath, a.Logger)
	if err != nil {
		return err
	}
	a.DLQ = queue
	return nil
}

func (a *App) natsDLQ() dlq.Writer {
	cfg := a.Config.DLQ
	if !cfg.Enabled || cfg.Backend != "nats" {
		return nil
	}
	client, err := a.natsClient()
	if err != nil {
		a.Logger.Warn("nats dlq unavailable, rejected batches will only be logged", logging.Error(err))
		return nil
	}
	return dlq.NewPublisher(client, cfg.Subject)
}

func (a *App) natsClient() (*natsclient.Client, error) {
	if a.nats != nil {
		return a.nats, nil
	}
	ncfg := natsclient.DefaultConfig()
	ncfg.URL = a.Config.NATS.URL
	ncfg.MaxReconnects = a.Config.NATS.MaxReconnects
	ncfg.ReconnectWait = a.Config.NATS.ReconnectWait
	ncfg.Logger = a.Logger

	client, err := natsclient.NewClient(ncfg)
	if err != nil {
		return nil, err
	}
	a.nats = client
	a.closers = append(a.closers, client.Close)
	a.Checks["nats"] = func(context.Context) error {
		if !client.IsConnected() {
			return errors.New("not connected")
		}
		return nil
	}
	return client, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) abort(err error) error {
	_ = a.Close()
	return err
}
