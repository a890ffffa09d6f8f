package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"autoequip.ai/internal/observability"
	eventlog "autoequip.ai/internal/persistence/log"
	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/scoring"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world"
	"autoequip.ai/internal/transport/ws"
)

type serverConfig struct {
	Addr        string                  `mapstructure:"addr"`
	Configs     string                  `mapstructure:"configs"`
	Data        string                  `mapstructure:"data"`
	Tuning      string                  `mapstructure:"tuning"`
	Log         observability.LogConfig `mapstructure:"log"`
	DisableDB   bool                    `mapstructure:"disable_db"`
	TraceAll    bool                    `mapstructure:"trace_all"`
	Workers     int                     `mapstructure:"workers"`
	EnableAdmin bool                    `mapstructure:"enable_admin"`
	EnablePprof bool                    `mapstructure:"enable_pprof"`
}

func main() {
	if err := newRootCmd(viper.New(), run).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper, runFn func(context.Context, serverConfig) error) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "autoequip-server",
		Short:         "Weapon upgrade decision server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runFn(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfgFile, "config", "c", "", "config file (default ./autoequip.yaml when present)")
	f.String("addr", ":8080", "listen address")
	f.String("configs", "./configs", "directory holding weapons.json")
	f.String("data", "./data", "directory for event logs, traces and the index db")
	f.String("tuning", "", "tuning.yaml path (default <configs>/tuning.yaml)")
	f.String("log.level", "info", "log level")
	f.String("log.format", "console", "log format: console or json")
	f.String("log.file", "", "also write JSON logs to this file (rotated)")
	f.Bool("disable_db", false, "do not write the sqlite index")
	f.Bool("trace_all", false, "trace every evaluation, not only directives")
	f.Int("workers", 0, "evaluation workers (0 = tuning value)")
	f.Bool("enable_admin", defaultEnableAdminHTTP(), "serve loopback-only admin endpoints")
	f.Bool("enable_pprof", false, "serve /debug/pprof")
	_ = v.BindPFlags(f)

	return cmd
}

func loadConfig(v *viper.Viper, cfgFile string) (serverConfig, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("autoequip")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("AUTOEQUIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return serverConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Tuning == "" {
		cfg.Tuning = filepath.Join(cfg.Configs, "tuning.yaml")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg serverConfig) error {
	logger := observability.NewLogger(cfg.Log, nil)
	defer func() { _ = logger.Sync() }()

	cats, err := catalogs.Load(cfg.Configs)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := tuning.Load(cfg.Tuning)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	if err := os.MkdirAll(cfg.Data, 0o755); err != nil {
		return err
	}
	events := eventlog.NewEventLogger(cfg.Data)
	defer events.Close()
	trace := eventlog.NewTraceLogger(cfg.Data)
	defer trace.Close()

	idx, err := openIndex(cfg.Data, cfg.DisableDB)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	sinks := world.Sinks{Events: events, Trace: trace}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cfg.Configs, cats, tune); err != nil {
			logger.Warn("index catalogs", zap.Error(err))
		}
		sinks.Index = idx
	}

	wcfg := world.ConfigFromTuning(tune)
	wcfg.TraceAll = cfg.TraceAll
	if cfg.Workers > 0 {
		wcfg.Workers = cfg.Workers
	}
	rt := world.Build(wcfg, tune, cats, logger, sinks)

	logger.Info("runtime ready",
		zap.Int("weapons", len(cats.Weapons.Palette)),
		zap.String("weapons_digest", cats.Weapons.Digest),
		zap.Float64("min_improvement", tune.Engine.MinImprovement),
		zap.Int("eval_interval_ticks", tune.Engine.EvalIntervalTicks),
		zap.Int("workers", wcfg.Workers),
		zap.Bool("sidearms", tune.Sidearms.Enabled),
		zap.Bool("ammo", tune.Ammo.Enabled))

	go func() {
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("runtime stopped", zap.Error(err))
		}
	}()
	go reloadOnHUP(ctx, rt, cfg.Tuning, logger)

	mux := http.NewServeMux()
	admin := &adminAPI{rt: rt, log: logger}
	if idx != nil {
		admin.idx = idx
	}
	admin.register(mux, cfg.EnableAdmin)
	if !cfg.EnableAdmin {
		logger.Info("admin endpoints disabled")
	}
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(rt, welcomeFor(cats, tune), logger).Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	<-rt.Done()
	return nil
}

func welcomeFor(cats *catalogs.Catalogs, tune tuning.Tuning) protocol.WelcomeMsg {
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	return protocol.WelcomeMsg{
		Catalogs: protocol.CatalogDigests{
			Weapons:      protocol.DigestRef{Digest: cats.Weapons.Digest, Count: len(cats.Weapons.Palette)},
			TuningDigest: hex.EncodeToString(sum[:]),
		},
		Tuning: protocol.TuningSummary{
			MinImprovement:    tune.Engine.MinImprovement,
			Radius:            tune.Engine.Radius,
			EvalIntervalTicks: tune.Engine.EvalIntervalTicks,
			SidearmsEnabled:   tune.Sidearms.Enabled,
			AmmoEnabled:       tune.Ammo.Enabled,
		},
	}
}

type weightSetter interface {
	SetWeights(scoring.Weights)
}

// reloadOnHUP re-reads the tuning file on SIGHUP and swaps the scoring
// weights. Engine thresholds and slot settings still need a restart.
func reloadOnHUP(ctx context.Context, rt weightSetter, path string, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := reloadWeights(rt, path); err != nil {
				logger.Warn("tuning reload failed, keeping current weights", zap.String("path", path), zap.Error(err))
				continue
			}
			logger.Info("tuning reloaded", zap.String("path", path))
		}
	}
}

func reloadWeights(rt weightSetter, path string) error {
	t, err := tuning.Load(path)
	if err != nil {
		return err
	}
	rt.SetWeights(scoring.WeightsFromTuning(t))
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
