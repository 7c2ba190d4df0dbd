package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"envforge.ai/internal/persistence/levelfile"
	"envforge.ai/internal/protocol"
	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/envs"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/worldgen"
)

type Config struct {
	Tuning       tuning.Tuning
	TuningDigest string
	Loader       engine.Loader
	Sink         engine.StepSink
	Logger       *log.Logger
}

// Server exposes reset/step over websocket. Each connection owns one engine.
type Server struct {
	c   Config
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(c Config) *Server {
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		c:   c,
		log: c.Logger,
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

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		s.log.Printf("session %s env=%s connected", sess.id, sess.eng.Env().Name())

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan any, 8)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-out:
					if !ok {
						return
					}
					if err := writeJSON(conn, v); err != nil {
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
			reply := sess.handle(ctx, msg)
			select {
			case out <- reply:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		close(out)
		<-done
		s.log.Printf("session %s closed after %d steps", sess.id, sess.eng.Steps())
	}
}

type session struct {
	id  string
	eng *engine.Engine
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}
	if base.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrBadVersion, fmt.Sprintf("want protocol_version %s", protocol.Version)))
		return nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}

	env, err := envs.New(hello.Env, s.c.Tuning)
	if err != nil {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrUnknownEnv, err.Error()))
		return nil
	}
	eng, err := engine.New(env, engine.Config{Tuning: s.c.Tuning, Loader: s.c.Loader, Sink: s.c.Sink, Logger: s.log})
	if err != nil {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrInternal, err.Error()))
		return nil
	}

	sess := &session{id: uuid.NewString(), eng: eng}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		Env:             env.Name(),
		Actions:         env.Actions(),
		TuningDigest:    s.c.TuningDigest,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

func (sess *session) handle(ctx context.Context, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, "bad json")
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError(protocol.ErrBadVersion, fmt.Sprintf("want protocol_version %s", protocol.Version))
	}
	if err := protocol.Validate(base.Type, msg); err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
	}

	switch base.Type {
	case protocol.TypeReset:
		var m protocol.ResetMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
		}
		st, rep, err := sess.eng.Reset(ctx, engine.Mode(m.Mode), engine.Ref{Seed: m.Seed, WorldID: m.WorldID})
		if err != nil {
			return errorMsg(err)
		}
		remaining, _ := st.Int(state.NSGlobals, state.KeyRemainingSteps)
		return protocol.StateMsg{
			Type:            protocol.TypeState,
			ProtocolVersion: protocol.Version,
			WorldID:         sess.eng.WorldID(),
			Episode:         sess.eng.Episode(),
			State:           st,
			Info:            engine.Info{Events: []string{}, LastActionResult: engine.OutcomeOK, RemainingSteps: remaining},
			Report:          &rep,
		}

	case protocol.TypeStep:
		var m protocol.StepMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewError(protocol.ErrProtoBadRequest, err.Error())
		}
		res, err := sess.eng.Step(engine.Action{Name: m.Action, Params: m.Params})
		if err != nil {
			return errorMsg(err)
		}
		return protocol.StateMsg{
			Type:            protocol.TypeState,
			ProtocolVersion: protocol.Version,
			WorldID:         sess.eng.WorldID(),
			Episode:         sess.eng.Episode(),
			Step:            sess.eng.Steps(),
			State:           res.State,
			Reward:          res.Reward,
			Done:            res.Done,
			Info:            res.Info,
		}
	}
	return protocol.NewError(protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type))
}

func errorMsg(err error) protocol.ErrorMsg {
	var rej *engine.RejectedError
	var gf *worldgen.GenerationFailure
	switch {
	case errors.As(err, &rej):
		m := protocol.NewError(protocol.ErrWorldRejected, err.Error())
		m.Report = &rej.Report
		return m
	case errors.As(err, &gf):
		return protocol.NewError(protocol.ErrGenerationFailed, err.Error())
	case errors.Is(err, levelfile.ErrNotFound), errors.Is(err, engine.ErrNoLoader):
		return protocol.NewError(protocol.ErrWorldNotFound, err.Error())
	case errors.Is(err, engine.ErrNotReady):
		return protocol.NewError(protocol.ErrNotReady, err.Error())
	case errors.Is(err, engine.ErrTerminal):
		return protocol.NewError(protocol.ErrTerminal, err.Error())
	}
	return protocol.NewError(protocol.ErrInternal, err.Error())
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
