package world

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"autoequip.ai/internal/protocol"
)

// Run owns the mirror until ctx ends or Stop is called. It must be called at
// most once.
func (r *Runtime) Run(ctx context.Context) error {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case s := <-r.attach:
			r.subs[s.ID] = s.Out
		case id := <-r.detach:
			delete(r.subs, id)
		case req := <-r.reweigh:
			r.applyWeights(req.w)
			close(req.done)
		case env := <-r.inbox:
			if _, err := r.Apply(env.Event); err != nil {
				r.log.Debug("event rejected",
					zap.String("session", env.SessionID),
					zap.String("type", env.Event.Type),
					zap.Error(err))
				r.reply(env.SessionID, protocol.NewErrorMsg(err, env.Event.Ref()))
			}
		}
	}
}

func (r *Runtime) Stop() { close(r.stop) }

func (r *Runtime) reply(sessionID string, v any) {
	out := r.subs[sessionID]
	if out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	r.send(out, b)
}
