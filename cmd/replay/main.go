package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoequip.ai/internal/observability"
	eventlog "autoequip.ai/internal/persistence/log"
	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/engine"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world"
	"autoequip.ai/internal/sim/world/kernel/model"
)

type replayOptions struct {
	EventsDir string
	TraceDir  string
	ConfigDir string
	Tuning    string
	ToTick    uint64
	Quiet     bool
	LogLevel  string
}

type replayResult struct {
	Events     int
	Ticks      int
	Directives int
	Verified   int
	LastTick   uint64
	Stats      world.Stats
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts replayOptions
	cmd := &cobra.Command{
		Use:           "replay",
		Short:         "Re-run logged events through a fresh runtime and print the directives it issues",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.EventsDir == "" {
				return fmt.Errorf("missing --events")
			}
			if opts.Tuning == "" {
				opts.Tuning = filepath.Join(opts.ConfigDir, "tuning.yaml")
			}
			res, err := replay(opts, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "replay ok: events=%d ticks=%d last_tick=%d directives=%d verified=%d evaluations=%d\n",
				res.Events, res.Ticks, res.LastTick, res.Directives, res.Verified, res.Stats.Evaluations)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.EventsDir, "events", "", "dir containing events-*.jsonl.zst")
	f.StringVar(&opts.TraceDir, "verify", "", "trace dir; fail unless the replayed directives match the recorded ones")
	f.StringVar(&opts.ConfigDir, "configs", "./configs", "config directory")
	f.StringVar(&opts.Tuning, "tuning", "", "tuning.yaml path (default <configs>/tuning.yaml)")
	f.Uint64Var(&opts.ToTick, "to_tick", 0, "stop after this tick (0 = all)")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "only print the summary")
	f.StringVar(&opts.LogLevel, "log.level", "warn", "log level")
	return cmd
}

func replay(opts replayOptions, out io.Writer) (replayResult, error) {
	var res replayResult

	cats, err := catalogs.Load(opts.ConfigDir)
	if err != nil {
		return res, fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := tuning.Load(opts.Tuning)
	if err != nil {
		return res, fmt.Errorf("load tuning: %w", err)
	}
	logger := observability.NewLogger(observability.LogConfig{Level: opts.LogLevel, Format: "console"}, nil)
	defer func() { _ = logger.Sync() }()

	var want []model.Directive
	if opts.TraceDir != "" {
		want, err = recordedDirectives(opts.TraceDir)
		if err != nil {
			return res, fmt.Errorf("read trace: %w", err)
		}
	}

	files, err := eventlog.EventFiles(opts.EventsDir)
	if err != nil {
		return res, fmt.Errorf("list events: %w", err)
	}
	if len(files) == 0 {
		return res, fmt.Errorf("no events files found in %s", opts.EventsDir)
	}

	rt := world.Build(world.ConfigFromTuning(tune), tune, cats, logger, world.Sinks{})
	enc := json.NewEncoder(out)

	errStop := errors.New("stop")
	err = eventlog.ReadEvents(files, func(ev protocol.Event) error {
		if ev.Type == protocol.TypeTick && opts.ToTick != 0 && ev.Tick > opts.ToTick {
			return errStop
		}
		res.Events++
		ds, err := rt.Apply(ev)
		if err != nil {
			return fmt.Errorf("event %d (%s): %w", res.Events, ev.Type, err)
		}
		if ev.Type == protocol.TypeTick {
			res.Ticks++
			res.LastTick = ev.Tick
		}
		for _, d := range ds {
			if want != nil {
				if res.Directives >= len(want) {
					return fmt.Errorf("tick %d: unexpected directive %s -> %s", d.Tick, d.AgentID, d.WeaponID)
				}
				if diff := cmp.Diff(want[res.Directives], d); diff != "" {
					return fmt.Errorf("tick %d: directive %d mismatch (-recorded +replayed):\n%s", d.Tick, res.Directives, diff)
				}
				res.Verified++
			}
			res.Directives++
			if !opts.Quiet {
				if err := enc.Encode(protocol.NewDirectiveMsg(d)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return res, err
	}
	if want != nil && opts.ToTick == 0 && res.Verified != len(want) {
		return res, fmt.Errorf("replay issued %d directives, trace recorded %d", res.Verified, len(want))
	}
	res.Stats = rt.Stats()
	logger.Debug("replay done", zap.Int("events", res.Events), zap.Int("directives", res.Directives))
	return res, nil
}

func recordedDirectives(dir string) ([]model.Directive, error) {
	files, err := eventlog.TraceFiles(dir)
	if err != nil {
		return nil, err
	}
	out := []model.Directive{}
	err = eventlog.ReadEvaluations(files, func(ev engine.Evaluation) error {
		if ev.Directive != nil {
			out = append(out, *ev.Directive)
		}
		return nil
	})
	return out, err
}
