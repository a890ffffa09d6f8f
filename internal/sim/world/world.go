package world

import (
	"sync/atomic"

	"go.uber.org/zap"

	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/availability"
	"autoequip.ai/internal/sim/capability"
	"autoequip.ai/internal/sim/eligibility"
	"autoequip.ai/internal/sim/engine"
	"autoequip.ai/internal/sim/forced"
	"autoequip.ai/internal/sim/scoring"
	"autoequip.ai/internal/sim/world/kernel/model"
)

type EventRecorder interface {
	WriteEvent(ev protocol.Event) error
}

type TraceRecorder interface {
	WriteEvaluation(ev engine.Evaluation) error
}

type EvaluationIndex interface {
	RecordEvaluation(ev engine.Evaluation)
}

// Sinks are optional diagnostics outputs. Nil fields are skipped.
type Sinks struct {
	Events EventRecorder
	Trace  TraceRecorder
	Index  EvaluationIndex
}

type Parts struct {
	Availability *availability.Cache
	Scores       *scoring.Cache
	Forced       *forced.Registry
	Validator    *eligibility.Validator
	Providers    capability.Providers
}

type Envelope struct {
	SessionID string
	Event     protocol.Event
}

type Subscriber struct {
	ID  string
	Out chan []byte
}

type pendingDirective struct {
	model.Directive
	issued uint64
}

// Runtime mirrors the agents and loose weapons of the simulation it is
// attached to and issues upgrade directives on tick boundaries. All state
// changes happen on the goroutine running Run (or the caller of Apply when
// Run is not used).
type Runtime struct {
	cfg   Config
	log   *zap.Logger
	sinks Sinks

	eng    *engine.Engine
	avail  *availability.Cache
	scores *scoring.Cache
	forced *forced.Registry
	res    *reservations

	agents  map[string]*model.Agent
	pending map[string]pendingDirective
	subs    map[string]chan []byte

	inbox   chan Envelope
	attach  chan Subscriber
	detach  chan string
	reweigh chan reweigh
	stop    chan struct{}
	done    chan struct{}

	tick    atomic.Uint64
	stepped atomic.Bool

	nAgents      atomic.Int64
	nPending     atomic.Int64
	evaluations  atomic.Uint64
	directives   atomic.Uint64
	expired      atomic.Uint64
	reevaluated  atomic.Uint64
	droppedOut   atomic.Uint64
	eventsOK     atomic.Uint64
	eventsFailed atomic.Uint64
}

func New(cfg Config, p Parts, log *zap.Logger, sinks Sinks) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DirectiveTimeoutTicks == 0 {
		cfg.DirectiveTimeoutTicks = cfg.EvalIntervalTicks
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if p.Availability == nil {
		p.Availability = availability.New()
	}
	if p.Forced == nil {
		p.Forced = forced.New()
	}
	r := &Runtime{
		cfg:     cfg,
		log:     log.Named("world"),
		sinks:   sinks,
		avail:   p.Availability,
		scores:  p.Scores,
		forced:  p.Forced,
		res:     newReservations(),
		agents:  map[string]*model.Agent{},
		pending: map[string]pendingDirective{},
		subs:    map[string]chan []byte{},
		inbox:   make(chan Envelope, cfg.InboxSize),
		attach:  make(chan Subscriber),
		detach:  make(chan string),
		reweigh: make(chan reweigh),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.eng = engine.New(cfg.Engine, engine.Deps{
		Availability: p.Availability,
		Scores:       p.Scores,
		Validator:    p.Validator,
		Forced:       p.Forced,
		Providers:    p.Providers,
		Claims:       r.res,
	})
	return r
}

func (r *Runtime) Inbox() chan<- Envelope            { return r.inbox }
func (r *Runtime) Attach() chan<- Subscriber         { return r.attach }
func (r *Runtime) Detach() chan<- string             { return r.detach }
func (r *Runtime) Engine() *engine.Engine            { return r.eng }
func (r *Runtime) Forced() *forced.Registry          { return r.forced }
func (r *Runtime) Tick() uint64                      { return r.tick.Load() }
func (r *Runtime) Availability() *availability.Cache { return r.avail }

type reweigh struct {
	w    scoring.Weights
	done chan struct{}
}

// SetWeights hands new scoring weights to the Run goroutine, which swaps the
// scorer between events and drops every cached score. It returns once the
// swap is done, or without effect if Run has already returned. Requires Run.
func (r *Runtime) SetWeights(w scoring.Weights) {
	req := reweigh{w: w, done: make(chan struct{})}
	select {
	case r.reweigh <- req:
		<-req.done
	case <-r.done:
	}
}

func (r *Runtime) applyWeights(w scoring.Weights) {
	r.scores.SetScorer(r.scores.Scorer().WithWeights(w))
	r.log.Info("scoring weights reloaded", zap.Uint64("generation", r.scores.Stats().Generation))
}

// Done is closed once Run has returned.
func (r *Runtime) Done() <-chan struct{} { return r.done }
