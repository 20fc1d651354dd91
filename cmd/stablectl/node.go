package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stablechain/config"
	"stablechain/core"
	"stablechain/core/state"
	"stablechain/native/stablecoin/oracle"
	"stablechain/observability"
	"stablechain/observability/logging"
	telemetry "stablechain/observability/otel"
	"stablechain/storage"
	"stablechain/storage/eventlog"
)

// node bundles everything a command needs to run transitions against the
// configured state database.
type node struct {
	cfg     *config.Config
	proc    *core.Processor
	events  *eventlog.Store
	logger  *slog.Logger
	closers []func() error
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.Backend == config.BackendMemory {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	switch cfg.Backend {
	case config.BackendBolt:
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.db"), nil)
	default:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	}
}

func openSource(cfg *config.Config) oracle.Source {
	if cfg.Oracle.Source == config.SourceHTTP {
		client := oracle.NewInstrumentedClient(time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second)
		return oracle.NewHTTPSource(client, cfg.Oracle.Endpoint, cfg.Oracle.APIKey, cfg.Oracle.RateLimitPerSecond)
	}
	return oracle.NewFileSource(cfg.Oracle.QuoteFile)
}

// openNode wires storage, the oracle and the processor. now is shared by the
// oracle adapter and the processor so quote age and receipts agree.
func openNode(ctx context.Context, cfg *config.Config, stderr io.Writer, now func() time.Time) (_ *node, err error) {
	if now == nil {
		now = time.Now
	}
	nd := &node{cfg: cfg}
	defer func() {
		if err != nil {
			nd.Close()
		}
	}()

	logger, logCloser := logging.SetupWithFile("stablectl", cfg.Environment, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Console:    stderr,
	})
	nd.logger = logger
	nd.closers = append(nd.closers, logCloser.Close)
	logger.Debug("log redaction active", "allowlist", logging.RedactionAllowlist())

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "stablectl",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	nd.closers = append(nd.closers, func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(flushCtx)
	})

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	nd.closers = append(nd.closers, func() error { db.Close(); return nil })
	if err := state.EnsureStateVersion(db, false); err != nil {
		return nil, err
	}

	signers, err := cfg.TrustedSignerAddresses()
	if err != nil {
		return nil, err
	}
	logger.Debug("oracle source configured",
		slog.String("source", cfg.Oracle.Source),
		logging.MaskField("endpoint", cfg.Oracle.Endpoint),
		logging.MaskSecret("api_key", cfg.Oracle.APIKey),
		slog.Int("trusted_signers", len(signers)))
	adapter := oracle.NewAdapter(openSource(cfg), oracle.Options{
		Now:            now,
		TrustedSigners: signers,
		MaxFutureSkew:  time.Duration(cfg.Oracle.MaxFutureSkewSeconds) * time.Second,
	})

	opts := []core.Option{
		core.WithClock(now),
		core.WithLogger(logger),
		core.WithMetrics(observability.Stablecoin()),
		core.WithMintQuota(cfg.MintQuota()),
	}
	if cfg.Events.Driver != "" {
		store, err := eventlog.Open(cfg.Events.Driver, cfg.Events.DSN)
		if err != nil {
			return nil, err
		}
		nd.events = store
		nd.closers = append(nd.closers, store.Close)
		opts = append(opts, core.WithReceiptSink(store))
	}

	proc, err := core.NewProcessor(db, adapter, opts...)
	if err != nil {
		return nil, err
	}
	nd.proc = proc
	return nd, nil
}

// Close releases resources in reverse order of acquisition. It is safe on a
// nil or partially opened node.
func (n *node) Close() {
	if n == nil {
		return
	}
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil && n.logger != nil {
			n.logger.Warn("shutdown step failed", "error", err.Error())
		}
	}
	n.closers = nil
}
