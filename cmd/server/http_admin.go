package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"autoequip.ai/internal/persistence/indexdb"
	"autoequip.ai/internal/sim/world"
	"autoequip.ai/internal/sim/world/kernel/model"
)

type directiveIndex interface {
	Stats() indexdb.Stats
	RecentDirectives(ctx context.Context, agentID string, limit int) ([]model.Directive, error)
	OutcomeCounts(ctx context.Context) (map[string]int64, error)
	RejectionCounts(ctx context.Context) (map[string]int64, error)
}

type adminAPI struct {
	rt  *world.Runtime
	idx directiveIndex // nil when the index is disabled
	log *zap.Logger
}

type statsResponse struct {
	Runtime    world.Stats      `json:"runtime"`
	Index      *indexdb.Stats   `json:"index,omitempty"`
	Outcomes   map[string]int64 `json:"outcomes,omitempty"`
	Rejections map[string]int64 `json:"rejections,omitempty"`
}

type directivesResponse struct {
	AgentID    string            `json:"agent_id"`
	Directives []model.Directive `json:"directives"`
}

func (a *adminAPI) register(mux *http.ServeMux, enableAdmin bool) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.metrics)
	if !enableAdmin {
		return
	}
	mux.HandleFunc("GET /v1/stats", loopbackOnly(a.stats))
	mux.HandleFunc("GET /v1/agents/{id}/directives", loopbackOnly(a.directives))
}

func (a *adminAPI) stats(rw http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Runtime: a.rt.Stats()}
	if a.idx != nil {
		s := a.idx.Stats()
		resp.Index = &s
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		var err error
		if resp.Outcomes, err = a.idx.OutcomeCounts(ctx); err != nil {
			a.log.Warn("outcome counts", zap.Error(err))
		}
		if resp.Rejections, err = a.idx.RejectionCounts(ctx); err != nil {
			a.log.Warn("rejection counts", zap.Error(err))
		}
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *adminAPI) directives(rw http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(r.PathValue("id"))
	if agentID == "" {
		http.Error(rw, "missing agent id", http.StatusBadRequest)
		return
	}
	if a.idx == nil {
		http.Error(rw, "index disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	ds, err := a.idx.RecentDirectives(r.Context(), agentID, limit)
	if err != nil {
		a.log.Warn("recent directives", zap.String("agent", agentID), zap.Error(err))
		http.Error(rw, "query failed", http.StatusInternalServerError)
		return
	}
	if ds == nil {
		ds = []model.Directive{}
	}
	writeJSON(rw, http.StatusOK, directivesResponse{AgentID: agentID, Directives: ds})
}

// metrics writes a minimal Prometheus exposition.
func (a *adminAPI) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s := a.rt.Stats()

	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s %v\n", name, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		fmt.Fprintf(rw, "%s %d\n", name, v)
	}

	gauge("autoequip_tick", "Last simulation tick seen.", s.Tick)
	gauge("autoequip_agents", "Mirrored agents.", s.Agents)
	gauge("autoequip_weapons", "Loose weapons in the availability cache.", s.Weapons)
	gauge("autoequip_maps", "Maps with at least one loose weapon.", s.Maps)
	gauge("autoequip_pending_directives", "Directives awaiting completion.", s.Pending)
	gauge("autoequip_reserved_weapons", "Weapons reserved by a pending directive.", s.Reserved)
	gauge("autoequip_forced_weapons", "Forced (agent, weapon) pairs.", s.Forced)
	gauge("autoequip_score_cache_entries", "Cached scores.", s.Scores.Entries)
	counter("autoequip_evaluations_total", "Agent evaluations run.", s.Evaluations)
	counter("autoequip_directives_total", "Directives issued.", s.Directives)
	counter("autoequip_directives_expired_total", "Directives dropped after timing out.", s.Expired)
	counter("autoequip_reevaluations_total", "Evaluations repeated after losing a reservation.", s.Reevaluated)
	counter("autoequip_outbound_dropped_total", "Outbound messages dropped on slow sessions.", s.DroppedOutbound)
	counter("autoequip_score_cache_hits_total", "Score cache hits.", s.Scores.Hits)
	counter("autoequip_score_cache_misses_total", "Score cache misses.", s.Scores.Misses)

	fmt.Fprintf(rw, "# HELP autoequip_events_total Inbound events by result.\n")
	fmt.Fprintf(rw, "# TYPE autoequip_events_total counter\n")
	fmt.Fprintf(rw, "autoequip_events_total{result=%q} %d\n", "ok", s.EventsOK)
	fmt.Fprintf(rw, "autoequip_events_total{result=%q} %d\n", "failed", s.EventsFailed)

	if a.idx != nil {
		is := a.idx.Stats()
		counter("autoequip_index_written_total", "Evaluations written to the index.", is.Written)
		counter("autoequip_index_dropped_total", "Evaluations dropped by the index writer.", is.Dropped)
		gauge("autoequip_index_queue_depth", "Index writer backlog.", is.QueueDepth)
	}
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
