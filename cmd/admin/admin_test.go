package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"autoequip.ai/internal/persistence/indexdb"
	eventlog "autoequip.ai/internal/persistence/log"
	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/engine"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world/kernel/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatsAndDirectivesCommands(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		switch {
		case r.URL.Path == "/v1/stats":
			_, _ = rw.Write([]byte(`{"runtime":{"tick":12}}`))
		case strings.HasSuffix(r.URL.Path, "/directives"):
			_, _ = rw.Write([]byte(`{"agent_id":"A1","directives":[]}`))
		default:
			http.NotFound(rw, r)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "stats", "--url", srv.URL+"/")
	require.NoError(t, err)
	require.Contains(t, out, `"tick": 12`)

	out, err = execute(t, "directives", "A1", "--url", srv.URL, "--limit", "3")
	require.NoError(t, err)
	require.Contains(t, out, `"agent_id": "A1"`)
	require.Equal(t, []string{"/v1/stats", "/v1/agents/A1/directives?limit=3"}, paths)
}

func TestStatsCommand_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := execute(t, "stats", "--url", srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestDBCommand(t *testing.T) {
	data := t.TempDir()
	idx, err := indexdb.OpenSQLite(filepath.Join(data, "index", "autoequip.sqlite"))
	require.NoError(t, err)
	cats, err := catalogs.FromDefs(catalogs.WeaponDef{ID: "MELEE_KNIFE", Kind: catalogs.KindMelee, Damage: 9, Cooldown: 1.2, Accuracy: 1, Range: 1, Mass: 0.5})
	require.NoError(t, err)
	require.NoError(t, idx.UpsertCatalogs("", cats, tuning.Defaults()))
	idx.RecordEvaluation(engine.Evaluation{
		AgentID: "A1", Tick: 4,
		Directive: &model.Directive{AgentID: "A1", WeaponID: "W1", MapID: "M1", Slot: model.SlotPrimary, Score: 14, Tick: 4},
	})
	idx.RecordEvaluation(engine.Evaluation{
		AgentID: "A2", Tick: 4, Reason: engine.ReasonNoImprovement,
		Rejected: []engine.Rejected{{WeaponID: "W1", Code: "RESERVED"}},
	})
	require.NoError(t, idx.Sync(context.Background()))
	require.NoError(t, idx.Close())

	out, err := execute(t, "db", "--data", data, "--agent", "A1")
	require.NoError(t, err)
	var d struct {
		AgentID  string `json:"agent_id"`
		WeaponID string `json:"weapon_id"`
		Slot     string `json:"slot"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &d))
	require.Equal(t, "W1", d.WeaponID)
	require.Equal(t, "PRIMARY", d.Slot)

	out, err = execute(t, "db", "outcomes", "--data", data)
	require.NoError(t, err)
	require.Contains(t, out, `"key":"DIRECTIVE","count":1`)
	require.Contains(t, out, `"key":"NO_IMPROVEMENT","count":1`)

	out, err = execute(t, "db", "rejections", "--data", data)
	require.NoError(t, err)
	require.Contains(t, out, `"key":"RESERVED"`)

	out, err = execute(t, "db", "catalogs", "--data", data)
	require.NoError(t, err)
	require.Contains(t, out, `"name":"weapons_palette"`)

	_, err = execute(t, "db", "bogus", "--data", data)
	require.Error(t, err)
}

func TestTraceCommand(t *testing.T) {
	data := t.TempDir()
	tl := eventlog.NewTraceLogger(data)
	for i, reason := range []string{engine.ReasonNoCandidates, engine.ReasonNoImprovement, engine.ReasonNoImprovement} {
		require.NoError(t, tl.WriteEvaluation(engine.Evaluation{AgentID: "A1", Tick: uint64(i + 1), Reason: reason}))
	}
	require.NoError(t, tl.WriteEvaluation(engine.Evaluation{AgentID: "A2", Tick: 4, Reason: engine.ReasonNoImprovement}))
	require.NoError(t, tl.Close())

	out, err := execute(t, "trace", "--data", data, "--agent", "A1", "--reason", engine.ReasonNoImprovement, "--limit", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var ev engine.Evaluation
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	require.Equal(t, uint64(3), ev.Tick)

	_, err = execute(t, "trace", "--data", t.TempDir())
	require.Error(t, err)
}
