package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"autoequip.ai/internal/protocol"
	"autoequip.ai/internal/sim/world"
)

const (
	outQueue = 256
	// busyWait bounds how long a removal event waits for inbox room.
	busyWait = 2 * time.Second
)

type Server struct {
	rt      *world.Runtime
	welcome protocol.WelcomeMsg
	log     *zap.Logger

	busyWait time.Duration
	upgrader websocket.Upgrader
}

// NewServer serves the simulation-facing socket. welcome is sent to every
// session after HELLO with its session id filled in.
func NewServer(rt *world.Runtime, welcome protocol.WelcomeMsg, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	welcome.Type = protocol.TypeWelcome
	welcome.ProtocolVersion = protocol.Version
	return &Server{
		rt:       rt,
		welcome:  welcome,
		log:      logger.Named("ws"),
		busyWait: busyWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := s.handshake(conn)
		if sessionID == "" {
			return
		}
		log := s.log.With(zap.String("session", sessionID))
		log.Info("session open", zap.String("remote", r.RemoteAddr))

		out := make(chan []byte, outQueue)
		select {
		case s.rt.Attach() <- world.Subscriber{ID: sessionID, Out: out}:
		case <-s.rt.Done():
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			ev, err := protocol.DecodeEvent(msg)
			if err != nil {
				s.reject(out, err, "")
				continue
			}
			if !s.handOff(ctx, world.Envelope{SessionID: sessionID, Event: ev}) {
				s.reject(out, protocol.Errorf(protocol.ErrBusy, "inbox full"), ev.Ref())
			}
		}

		// Cleanup.
		cancel()
		<-writerDone
		select {
		case s.rt.Detach() <- sessionID:
		case <-s.rt.Done():
		}
		log.Info("session closed")
	}
}

// handOff queues env for the runtime. Events that remove something from the
// mirror wait up to busyWait for room; everything else is refused at once
// when the inbox is full and left for the client to resend.
func (s *Server) handOff(ctx context.Context, env world.Envelope) bool {
	select {
	case s.rt.Inbox() <- env:
		return true
	default:
	}
	if !removes(env.Event.Type) {
		return false
	}
	t := time.NewTimer(s.busyWait)
	defer t.Stop()
	select {
	case s.rt.Inbox() <- env:
		return true
	case <-t.C:
	case <-ctx.Done():
	case <-s.rt.Done():
	}
	return false
}

func removes(eventType string) bool {
	switch eventType {
	case protocol.TypeWeaponPickup, protocol.TypeWeaponDespawn, protocol.TypeAgentDespawn,
		protocol.TypeMapUnload, protocol.TypeDirectiveDone:
		return true
	}
	return false
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}

	welcome := s.welcome
	welcome.SessionID = uuid.NewString()
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	s.log.Debug("hello", zap.String("client", hello.ClientName), zap.String("session", welcome.SessionID))
	return welcome.SessionID
}

// reject answers a malformed or refused message directly on the session queue.
func (s *Server) reject(out chan []byte, err error, ref string) {
	b, merr := json.Marshal(protocol.NewErrorMsg(err, ref))
	if merr != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
