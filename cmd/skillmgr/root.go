package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/UTNuclearRobotics/skiros2/internal/config"
	"github.com/UTNuclearRobotics/skiros2/internal/logging"
	"github.com/UTNuclearRobotics/skiros2/internal/presentation/tui"
	"github.com/UTNuclearRobotics/skiros2/pkg/adapters/redis"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
	"github.com/UTNuclearRobotics/skiros2/pkg/observability"
	"github.com/UTNuclearRobotics/skiros2/pkg/skill"
)

var rootCmd = &cobra.Command{
	Use:   "skillmgr",
	Short: "skillmgr runs robot skills as behavior trees",
	Long: `skillmgr loads a skill library, composes requested skill sequences into
behavior trees and ticks them at a fixed rate.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Path to the skillmgr configuration file")
	pf.String("agent", config.DefaultAgent, "Name of the agent")
	pf.String("prefix", "", "Prefix qualifying the agent name")
	pf.StringSliceP("library", "l", nil, "Skill library files")
	pf.StringSlice("advertise", nil, "Skills offered to clients (default all)")
	pf.Float64("tick-rate", config.DefaultTickRate, "Tick rate in Hz")
	pf.Duration("preempt-timeout", config.DefaultPreemptTimeout, "Time a task gets to stop after preemption")
	pf.String("redis", "", "Redis address for the shared world model")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.BoolP("verbose", "v", false, "Log every traversal")
	pf.Bool("debug", false, "Include node parameters in progress")
}

// loadConfig reads the configuration file, if any, and applies the flags
// the user set on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}

	if flags.Changed("agent") {
		cfg.Agent, _ = flags.GetString("agent")
	}
	if flags.Changed("prefix") {
		cfg.Prefix, _ = flags.GetString("prefix")
	}
	if flags.Changed("library") {
		cfg.Libraries, _ = flags.GetStringSlice("library")
	}
	if flags.Changed("advertise") {
		cfg.Primitives = nil
		cfg.Skills, _ = flags.GetStringSlice("advertise")
	}
	if flags.Changed("tick-rate") {
		cfg.TickRate, _ = flags.GetFloat64("tick-rate")
	}
	if flags.Changed("preempt-timeout") {
		d, _ := flags.GetDuration("preempt-timeout")
		cfg.PreemptTimeout = config.Duration(d)
	}
	if flags.Changed("redis") {
		cfg.Redis.Addr, _ = flags.GetString("redis")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

func loadLibrary(cfg config.Config) (*skill.Library, error) {
	if len(cfg.Libraries) == 0 {
		return nil, errors.New("no skill library given, use --library or the libraries config key")
	}
	defs, err := skill.LoadFiles(cfg.Libraries...)
	if err != nil {
		return nil, err
	}
	lib := skill.NewLibrary()
	if err := lib.Define(defs...); err != nil {
		return nil, err
	}
	return lib, nil
}

// stack is a manager with the resources backing it.
type stack struct {
	manager  *manager.Manager
	logger   *slog.Logger
	registry *prometheus.Registry
	closers  []func() error
}

// Close releases the manager and its backends.
func (r *stack) Close(ctx context.Context) error {
	errs := []error{r.manager.Shutdown(ctx)}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// newStack wires a manager from cfg. With a Redis address the world
// model, progress events and registration lock are shared through Redis.
func newStack(cfg config.Config, extra ...manager.Option) (*stack, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	lib, err := loadLibrary(cfg)
	if err != nil {
		return nil, err
	}

	rt := &stack{logger: logger, registry: prometheus.NewRegistry()}
	opts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithMetrics(observability.NewMetrics(rt.registry)),
		manager.WithTickRate(cfg.TickRate),
		manager.WithPreemptTimeout(cfg.PreemptTimeout.Std()),
		manager.WithVerbose(cfg.Verbose),
		manager.WithLibraryFiles(cfg.Libraries...),
		manager.WithAdvertised(cfg.Advertised()...),
	}

	if cfg.Redis.Enabled() {
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rt.closers = append(rt.closers, client.Close)

		wm := redis.NewFromClient(client, redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Redis.TTL.Std()))
		pub := redis.NewPublisher(client,
			redis.WithChannel(cfg.Redis.Channel),
			redis.WithPublisherPrefix(cfg.Redis.Prefix),
			redis.WithEventTTL(cfg.Redis.TTL.Std()),
			redis.WithPublisherLogger(logger),
		)
		rt.closers = append(rt.closers, pub.Close)
		opts = append(opts,
			manager.WithWorldModel(wm),
			manager.WithPublisher(pub),
			manager.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)),
		)
		logger.Info("using redis world model", "addr", cfg.Redis.Addr)
	}

	m, err := manager.New(cfg.AgentName(), lib, append(opts, extra...)...)
	if err != nil {
		for _, c := range rt.closers {
			_ = c()
		}
		return nil, err
	}
	m.SetDebug(cfg.Debug)
	rt.manager = m
	return rt, nil
}

// newRenderer colors progress only when out is a terminal.
func newRenderer(out io.Writer, params bool) *tui.Renderer {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return tui.NewRenderer(params)
	}
	return tui.NewPlainRenderer(params)
}
