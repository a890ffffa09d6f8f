package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoequip.ai/internal/observability"
	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/world/kernel/model"
)

type botOptions struct {
	URL      string
	Configs  string
	Agents   int
	Weapons  int
	Ticks    uint64
	TickMS   int
	Radius   int
	Delay    uint64
	Seed     int64
	MapID    string
	LogLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bot:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts botOptions
	cmd := &cobra.Command{
		Use:           "bot",
		Short:         "Drive the server with a synthetic world and execute its directives",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runBot(ctx, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.URL, "url", "ws://localhost:8080/v1/ws", "ws url")
	f.StringVar(&opts.Configs, "configs", "./configs", "directory holding weapons.json")
	f.IntVar(&opts.Agents, "agents", 20, "agents to spawn")
	f.IntVar(&opts.Weapons, "weapons", 60, "weapons to scatter at start")
	f.Uint64Var(&opts.Ticks, "ticks", 0, "stop after this many ticks (0 = until interrupted)")
	f.IntVar(&opts.TickMS, "tick_ms", 20, "wall time per tick")
	f.IntVar(&opts.Radius, "radius", 40, "half-width of the square map")
	f.Uint64Var(&opts.Delay, "delay", 5, "ticks an agent needs to carry out a directive")
	f.Int64Var(&opts.Seed, "seed", 1, "random seed")
	f.StringVar(&opts.MapID, "map", "M1", "map id")
	f.StringVar(&opts.LogLevel, "log.level", "info", "log level")
	return cmd
}

func runBot(ctx context.Context, opts botOptions) error {
	logger := observability.NewLogger(observability.LogConfig{Level: opts.LogLevel, Format: "console"}, nil).Named("bot")
	defer func() { _ = logger.Sync() }()

	cats, err := catalogs.Load(opts.Configs)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "bot"}); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		return fmt.Errorf("read WELCOME: %w", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		return fmt.Errorf("expected WELCOME, got %s", welcome.Type)
	}
	if welcome.Catalogs.Weapons.Digest != cats.Weapons.Digest {
		logger.Warn("weapon catalog differs from server", zap.String("server", welcome.Catalogs.Weapons.Digest), zap.String("local", cats.Weapons.Digest))
	}
	logger.Info("WELCOME",
		zap.String("session", welcome.SessionID),
		zap.Int("weapons", welcome.Catalogs.Weapons.Count),
		zap.Float64("min_improvement", welcome.Tuning.MinImprovement),
		zap.Int("eval_interval_ticks", welcome.Tuning.EvalIntervalTicks))

	directives := make(chan model.Directive, 1024)
	readErr := make(chan error, 1)
	go func() { readErr <- readLoop(conn, directives, logger) }()

	s := newSim(opts.Seed, cats, opts.MapID, opts.Radius, opts.Delay)
	if err := send(conn, s.bootstrap(opts.Agents, opts.Weapons)); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(max(opts.TickMS, 1)) * time.Millisecond)
	defer ticker.Stop()
	issued := 0
	for opts.Ticks == 0 || s.tick < opts.Ticks {
		select {
		case <-ctx.Done():
			return summary(logger, s, issued)
		case err := <-readErr:
			return fmt.Errorf("read: %w", err)
		case <-ticker.C:
		}
	drain:
		for {
			select {
			case d := <-directives:
				issued++
				s.onDirective(d)
			default:
				break drain
			}
		}
		if err := send(conn, s.advance()); err != nil {
			return err
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	return summary(logger, s, issued)
}

func readLoop(conn *websocket.Conn, out chan<- model.Directive, logger *zap.Logger) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeDirective:
			var dm protocol.DirectiveMsg
			if err := json.Unmarshal(msg, &dm); err != nil {
				continue
			}
			logger.Debug("DIRECTIVE",
				zap.String("agent", dm.Directive.AgentID),
				zap.String("weapon", dm.Directive.WeaponID),
				zap.String("slot", string(dm.Directive.Slot)),
				zap.String("displaced", dm.Directive.DisplacedID))
			out <- dm.Directive
		case protocol.TypeError:
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err == nil {
				logger.Warn("ERROR", zap.String("code", em.Code), zap.String("message", em.Message), zap.String("ref", em.Ref))
			}
		}
	}
}

func send(conn *websocket.Conn, evs []protocol.Event) error {
	for _, ev := range evs {
		ev.ProtocolVersion = protocol.Version
		if err := conn.WriteJSON(ev); err != nil {
			return fmt.Errorf("send %s: %w", ev.Type, err)
		}
	}
	return nil
}

func summary(logger *zap.Logger, s *sim, issued int) error {
	logger.Info("bot finished",
		zap.Uint64("ticks", s.tick),
		zap.Int("directives", issued),
		zap.Int("executed", s.done),
		zap.Int("failed", s.failed),
		zap.Int("loose_weapons", len(s.loose)))
	return nil
}
