package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	eventlog "autoequip.ai/internal/persistence/log"
	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/engine"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world"
	"autoequip.ai/internal/sim/world/kernel/model"
)

func repoConfigs(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "configs")
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found")
		dir = parent
	}
}

// testConfigs copies the shipped catalog and evaluates every tick.
func testConfigs(t *testing.T) string {
	t.Helper()
	src := repoConfigs(t)
	dst := t.TempDir()
	weapons, err := os.ReadFile(filepath.Join(src, "weapons.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dst, "weapons.json"), weapons, 0o644))
	tune, err := os.ReadFile(filepath.Join(src, "tuning.yaml"))
	require.NoError(t, err)
	patched := strings.Replace(string(tune), "eval_interval_ticks: 250", "eval_interval_ticks: 1", 1)
	require.NotEqual(t, string(tune), patched)
	require.NoError(t, os.WriteFile(filepath.Join(dst, "tuning.yaml"), []byte(patched), 0o644))
	return dst
}

// recordSession drives a live runtime with logging sinks and returns the
// directives it issued.
func recordSession(t *testing.T, configs, data string) []model.Directive {
	t.Helper()
	cats, err := catalogs.Load(configs)
	require.NoError(t, err)
	tune, err := tuning.Load(filepath.Join(configs, "tuning.yaml"))
	require.NoError(t, err)

	events := eventlog.NewEventLogger(data)
	trace := eventlog.NewTraceLogger(data)
	rt := world.Build(world.ConfigFromTuning(tune), tune, cats, zap.NewNop(), world.Sinks{Events: events, Trace: trace})

	knife := model.Weapon{ID: "A1-P", Def: "MELEE_KNIFE", Quality: model.QualityNormal, Mass: 0.5}
	agent := model.Agent{ID: "A1", MapID: "M1", Primary: &knife, Skills: model.Skills{Melee: 10}}
	mono := model.Weapon{ID: "W1", Def: "MELEE_MONOSWORD", Quality: model.QualityGood, Mass: 1.5, MapID: "M1", Pos: model.Vec3i{X: 3}}

	var issued []model.Directive
	apply := func(ev protocol.Event) {
		ds, err := rt.Apply(ev)
		require.NoError(t, err)
		issued = append(issued, ds...)
	}
	apply(protocol.Event{Type: protocol.TypeWeaponSpawn, Weapon: &mono})
	apply(protocol.Event{Type: protocol.TypeAgentSpawn, Agent: &agent})
	apply(protocol.Event{Type: protocol.TypeTick, Tick: 1})
	require.Len(t, issued, 1)

	apply(protocol.Event{Type: protocol.TypeWeaponPickup, WeaponID: "W1", AgentID: "A1"})
	agent.Primary = &model.Weapon{ID: "W1", Def: "MELEE_MONOSWORD", Quality: model.QualityGood, Mass: 1.5}
	apply(protocol.Event{Type: protocol.TypeAgentUpdate, Agent: &agent})
	apply(protocol.Event{Type: protocol.TypeTick, Tick: 2})

	club := model.Weapon{ID: "W2", Def: "MELEE_CLUB", Quality: model.QualityAwful, Mass: 2, MapID: "M1", Pos: model.Vec3i{X: 1}}
	apply(protocol.Event{Type: protocol.TypeWeaponSpawn, Weapon: &club})
	apply(protocol.Event{Type: protocol.TypeTick, Tick: 3})

	require.NoError(t, events.Close())
	require.NoError(t, trace.Close())
	return issued
}

func TestReplay_ReproducesDirectives(t *testing.T) {
	configs := testConfigs(t)
	data := t.TempDir()
	live := recordSession(t, configs, data)

	var out bytes.Buffer
	res, err := replay(replayOptions{
		EventsDir: filepath.Join(data, "events"),
		TraceDir:  filepath.Join(data, "trace"),
		ConfigDir: configs,
		Tuning:    filepath.Join(configs, "tuning.yaml"),
		LogLevel:  "error",
	}, &out)
	require.NoError(t, err)
	require.Equal(t, len(live), res.Directives)
	require.Equal(t, len(live), res.Verified)
	require.Equal(t, 3, res.Ticks)
	require.Equal(t, uint64(3), res.LastTick)
	require.Equal(t, 8, res.Events)
	require.Contains(t, out.String(), `"weapon_id":"W1"`)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	configs := testConfigs(t)
	data := t.TempDir()
	recordSession(t, configs, data)

	bogus := t.TempDir()
	tl := eventlog.NewTraceLogger(bogus)
	require.NoError(t, tl.WriteEvaluation(engine.Evaluation{
		AgentID:   "A1",
		Directive: &model.Directive{AgentID: "A1", WeaponID: "SOMETHING_ELSE", Tick: 1},
	}))
	require.NoError(t, tl.Close())

	_, err := replay(replayOptions{
		EventsDir: filepath.Join(data, "events"),
		TraceDir:  filepath.Join(bogus, "trace"),
		ConfigDir: configs,
		Tuning:    filepath.Join(configs, "tuning.yaml"),
		LogLevel:  "error",
	}, &bytes.Buffer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "mismatch")
}

func TestReplay_ToTick(t *testing.T) {
	configs := testConfigs(t)
	data := t.TempDir()
	recordSession(t, configs, data)

	res, err := replay(replayOptions{
		EventsDir: filepath.Join(data, "events"),
		ConfigDir: configs,
		Tuning:    filepath.Join(configs, "tuning.yaml"),
		ToTick:    1,
		Quiet:     true,
		LogLevel:  "error",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Ticks)
	require.Equal(t, 1, res.Directives)
	require.Zero(t, res.Verified)
}

func TestReplayCmd_RequiresEvents(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--configs", repoConfigs(t)})
	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "--events")
}
