// Command simba is SiMBA's CLI entrypoint (spec.md §150): a single
// executable that accepts a configuration path and boolean flags
// controlling headless mode, schema generation and results-only replay.
// It is the boundary layer spec.md §1 sketches for completeness — every
// concrete sensor/navigator/controller/physics/estimator plug-in is an
// external collaborator this binary only wires together.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mescourrou/simba/internal/config"
	"github.com/mescourrou/simba/internal/envmap"
	"github.com/mescourrou/simba/internal/inspector"
	"github.com/mescourrou/simba/internal/kernel"
	"github.com/mescourrou/simba/internal/messaging"
	"github.com/mescourrou/simba/internal/randgen"
	"github.com/mescourrou/simba/internal/record"
	"github.com/mescourrou/simba/internal/resultsio"
	"github.com/mescourrou/simba/internal/scenario"
	"github.com/mescourrou/simba/internal/telemetry"
	"github.com/mescourrou/simba/internal/telemetry/mqttsink"
	"github.com/mescourrou/simba/internal/telemetry/trace"
	"github.com/sirupsen/logrus"
)

// version is injected at build time via ldflags, following the teacher's
// own convention.
var version = "dev"

// Exit codes per spec.md §150.
const (
	exitOK = iota
	exitConfigError
	exitRuntimeError
	exitSchemaVersionMismatch
)

type cliFlags struct {
	configPath           string
	schema               bool
	headless             bool
	replayPath           string
	allowVersionMismatch bool
	showVersion          bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "path to the run's YAML configuration file")
	flag.BoolVar(&f.schema, "schema", false, "print the configuration file's JSON schema and exit")
	flag.BoolVar(&f.headless, "headless", false, "disable the websocket live inspector even if configured")
	flag.StringVar(&f.replayPath, "replay", "", "replay a previously written results file instead of running a simulation")
	flag.BoolVar(&f.allowVersionMismatch, "allow-version-mismatch", false, "run even if the config's version does not match this build's schema version")
	flag.BoolVar(&f.showVersion, "version", false, "show version and exit")
	flag.Parse()
	return f
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	flags := parseFlags()

	if flags.showVersion {
		fmt.Printf("simba %s\n", version)
		return exitOK
	}
	if flags.schema {
		if err := printSchema(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitRuntimeError
		}
		return exitOK
	}
	if flags.replayPath != "" {
		if err := replay(flags); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitRuntimeError
		}
		return exitOK
	}

	if flags.configPath == "" {
		fmt.Fprintln(os.Stderr, "cmd/simba: -config is required (or pass -schema / -replay)")
		return exitConfigError
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	if cfg.VersionMismatch() && !flags.allowVersionMismatch {
		fmt.Fprintf(os.Stderr, "cmd/simba: config version %q does not match this build's schema version %q (pass -allow-version-mismatch to run anyway)\n", cfg.Version, config.SchemaVersion)
		return exitSchemaVersionMismatch
	}

	if err := simulate(cfg, flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntimeError
	}
	return exitOK
}

// printSchema implements -schema: the generated JSON schema persisted
// state spec.md §6 names.
func printSchema() error {
	schema := resultsio.GenerateSchema(&config.Config{})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(schema)
}

// replay implements results-only replay (spec.md §150): load a
// previously written results file and, unless -headless, serve its
// recorded records to the websocket inspector for offline viewing.
func replay(flags cliFlags) error {
	doc, err := resultsio.Read(flags.replayPath)
	if err != nil {
		return err
	}
	fmt.Printf("replay: %d records loaded from %s\n", len(doc.Records), flags.replayPath)

	if flags.headless || doc.Config == nil || doc.Config.Results.Inspector == nil {
		return nil
	}

	logger := telemetry.NewLogger(doc.Config.Log)
	srv := inspector.New(logger)
	httpSrv := &http.Server{Addr: doc.Config.Results.Inspector.ListenAddr, Handler: srv}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("cmd/simba: inspector server stopped")
		}
	}()

	if err := srv.Flush(doc.Records); err != nil {
		logger.WithError(err).Warn("cmd/simba: replaying records to inspector")
	}
	logger.WithField("addr", doc.Config.Results.Inspector.ListenAddr).Info("cmd/simba: serving replayed records, press Ctrl+C to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return httpSrv.Shutdown(context.Background())
}

// simulate wires every SPEC_FULL.md component together and drives one
// run of the kernel to completion.
func simulate(cfg *config.Config, flags cliFlags) error {
	logger := telemetry.NewLogger(cfg.Log)
	scoped := telemetry.NewScopedLogger(logger, cfg.Log.Scope)

	logger.WithFields(logrus.Fields{
		"version":  version,
		"max_time": cfg.MaxTime,
		"robots":   len(cfg.Robots),
	}).Info("cmd/simba: starting simulation")

	var env *envmap.Map
	if cfg.Environment.MapPath != "" {
		m, err := envmap.Load(cfg.Environment.MapPath)
		if err != nil {
			return err
		}
		env = m
	}

	randFactory := randgen.NewFactory(cfg.RandomSeed)

	scenarioEvents, err := cfg.ToScenarioEvents()
	if err != nil {
		return err
	}
	engine := scenario.NewEngine(scenarioEvents)
	if err := engine.Resolve(randFactory, cfg.MaxTime); err != nil {
		return err
	}

	registry := kernel.NewRegistry()
	bus := messaging.New(registry)

	nodes, err := buildInitialNodes(cfg, bus, env, randFactory, cfg.TimeAnalysis.Enabled)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := registry.Add(n); err != nil {
			return err
		}
	}

	robotTemplates := make(map[string]config.RobotConfig, len(cfg.Robots))
	for _, rc := range cfg.Robots {
		robotTemplates[rc.Name] = rc
	}
	unitTemplates := make(map[string]config.ComputationUnitConfig, len(cfg.ComputationUnits))
	for _, uc := range cfg.ComputationUnits {
		unitTemplates[uc.Name] = uc
	}
	factory := newNodeFactory(robotTemplates, unitTemplates, env, randFactory, cfg.TimeAnalysis.Enabled)

	var liveSinks []record.Sink
	if cfg.Results.MQTTBridge != nil {
		sink, err := mqttsink.New(*cfg.Results.MQTTBridge, logger)
		if err != nil {
			return fmt.Errorf("cmd/simba: results.mqtt_bridge: %w", err)
		}
		defer sink.Close()
		liveSinks = append(liveSinks, sink)
	}

	var inspectorHTTP *http.Server
	if cfg.Results.Inspector != nil && !flags.headless {
		srv := inspector.New(logger)
		liveSinks = append(liveSinks, srv)
		inspectorHTTP = &http.Server{Addr: cfg.Results.Inspector.ListenAddr, Handler: srv}
		go func() {
			if err := inspectorHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				scoped.For("inspector").WithFields(logrus.Fields{"error": err}).Error("inspector server stopped")
			}
		}()
		defer inspectorHTTP.Shutdown(context.Background())
	}

	storeOpts := []record.Option{}
	switch cfg.Results.SaveMode {
	case "continuous":
		storeOpts = append(storeOpts, record.WithContinuous())
	case "batched":
		storeOpts = append(storeOpts, record.WithBatched(cfg.Results.BatchSize))
	case "periodic":
		storeOpts = append(storeOpts, record.WithPeriodic(cfg.Results.PeriodicDelta))
	}
	if sink := combineSinks(liveSinks, logger); sink != nil {
		storeOpts = append(storeOpts, record.WithSink(sink))
	}
	store := record.New(storeOpts...)

	k := &kernel.Kernel{
		Registry:     registry,
		Bus:          bus,
		Store:        store,
		Scenario:     engine,
		Rand:         randFactory,
		Factory:      factory,
		Logger:       logger,
		MaxTime:      cfg.MaxTime,
		TimeAnalysis: cfg.TimeAnalysis.Enabled,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			scoped.For("kernel").Warn("received termination signal, stopping after the current barrier")
			cancel()
		case <-ctx.Done():
		}
	}()

	runErr := k.Run(ctx)
	records, finalizeErr := store.Finalize()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("cmd/simba: simulation: %w", runErr)
	}
	if finalizeErr != nil {
		return fmt.Errorf("cmd/simba: finalizing record store: %w", finalizeErr)
	}

	if cfg.Results.Path != "" {
		if err := resultsio.Write(cfg.Results.Path, records, cfg); err != nil {
			return err
		}
		scoped.For("results").WithFields(logrus.Fields{"path": cfg.Results.Path, "records": len(records)}).Info("results written")
	}

	if cfg.TimeAnalysis.Enabled {
		exporter := trace.NewExporter(cfg.TimeAnalysis)
		if err := exporter.Export(records); err != nil {
			scoped.For("trace").WithFields(logrus.Fields{"error": err}).Warn("time_analysis export failed")
		}
	}

	if cfg.Results.PostRunScript != "" {
		if err := resultsio.RunPostScript(cfg.Results.PostRunScript, cfg.Results.Path); err != nil {
			scoped.For("results").WithFields(logrus.Fields{"error": err}).Warn("post_run_script failed")
		}
	}

	return nil
}
