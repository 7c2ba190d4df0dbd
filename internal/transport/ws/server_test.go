package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"envforge.ai/internal/persistence/levelfile"
	"envforge.ai/internal/protocol"
	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/envs/icemaze"
	"envforge.ai/internal/sim/tuning"
)

func dial(t *testing.T, c Config) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(c).Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv[T any](t *testing.T, conn *websocket.Conn) (string, T) {
	t.Helper()
	var out T
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	return base.Type, out
}

func hello(t *testing.T, conn *websocket.Conn, env string) {
	t.Helper()
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Env: env})
	typ, w := recv[protocol.WelcomeMsg](t, conn)
	if typ != protocol.TypeWelcome || w.Env != env || len(w.Actions) == 0 || w.SessionID == "" {
		t.Fatalf("welcome = %s %+v", typ, w)
	}
}

func step(name string, params map[string]any) protocol.StepMsg {
	return protocol.StepMsg{Type: protocol.TypeStep, ProtocolVersion: protocol.Version, Action: name, Params: params}
}

func TestServer_PlayIceMaze(t *testing.T) {
	conn := dial(t, Config{Tuning: tuning.Defaults()})
	hello(t, conn, icemaze.Name)

	send(t, conn, step("move", map[string]any{"direction": "east"}))
	typ, e := recv[protocol.ErrorMsg](t, conn)
	if typ != protocol.TypeError || e.Code != protocol.ErrNotReady {
		t.Fatalf("step before reset = %s %+v", typ, e)
	}

	send(t, conn, protocol.ResetMsg{Type: protocol.TypeReset, ProtocolVersion: protocol.Version, Mode: "generate", Seed: 42})
	typ, st := recv[protocol.StateMsg](t, conn)
	if typ != protocol.TypeState || st.State == nil || st.Report == nil || !st.Report.Valid {
		t.Fatalf("reset = %s %+v", typ, st)
	}
	initial := st.State.Digest()

	send(t, conn, step("MOVE_NORTH", nil))
	_, bad := recv[protocol.StateMsg](t, conn)
	if bad.Info.LastActionResult != engine.OutcomeInvalidAction || bad.Done || bad.State.Digest() != initial {
		t.Fatalf("MOVE_NORTH = %+v", bad.Info)
	}

	env, err := icemaze.New(tuning.Defaults().Envs.IceMaze)
	if err != nil {
		t.Fatalf("icemaze.New: %v", err)
	}
	traj, err := env.Solve(st.State)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	var last protocol.StateMsg
	for _, a := range traj {
		send(t, conn, step(a.Name, a.Params))
		_, last = recv[protocol.StateMsg](t, conn)
	}
	if !last.Done || last.Info.Reason != engine.ReasonSuccess {
		t.Fatalf("final = done %v reason %q", last.Done, last.Info.Reason)
	}

	send(t, conn, step("move", map[string]any{"direction": "east"}))
	_, e = recv[protocol.ErrorMsg](t, conn)
	if e.Code != protocol.ErrTerminal {
		t.Fatalf("step after done = %+v", e)
	}
}

func TestServer_ErrorCodes(t *testing.T) {
	conn := dial(t, Config{Tuning: tuning.Defaults(), Loader: levelfile.Dir{Root: t.TempDir()}})
	hello(t, conn, "memory")

	cases := []struct {
		msg  string
		code string
	}{
		{`{"type":"RESET","protocol_version":"0.1","mode":"generate"}`, protocol.ErrBadVersion},
		{`{"type":"RESET","protocol_version":"1.0","mode":"warp"}`, protocol.ErrProtoBadRequest},
		{`{"type":"STEP","protocol_version":"1.0","action":"reveal","params":{"first":[1]}}`, protocol.ErrProtoBadRequest},
		{`{"type":"RESET","protocol_version":"1.0","mode":"load","world_id":"missing"}`, protocol.ErrWorldNotFound},
		{`{"type":"HELLO","protocol_version":"1.0","env":"memory"}`, protocol.ErrProtoBadRequest},
	}
	for _, c := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(c.msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		typ, e := recv[protocol.ErrorMsg](t, conn)
		if typ != protocol.TypeError || e.Code != c.code || !protocol.IsKnownCode(e.Code) {
			t.Fatalf("%s: got %s %+v", c.msg, typ, e)
		}
	}
}

func TestServer_LoadFromDir(t *testing.T) {
	dir := levelfile.Dir{Root: t.TempDir()}
	env, err := icemaze.New(tuning.Defaults().Envs.IceMaze)
	if err != nil {
		t.Fatalf("icemaze.New: %v", err)
	}
	eng, err := engine.New(env, engine.Config{Tuning: tuning.Defaults()})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	id, st, err := eng.Generator().Generate(42)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := dir.Save(id, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	conn := dial(t, Config{Tuning: tuning.Defaults(), Loader: dir})
	hello(t, conn, icemaze.Name)
	send(t, conn, protocol.ResetMsg{Type: protocol.TypeReset, ProtocolVersion: protocol.Version, Mode: "load", WorldID: id})
	typ, got := recv[protocol.StateMsg](t, conn)
	if typ != protocol.TypeState || got.WorldID != id || got.State.Digest() != st.Digest() {
		t.Fatalf("load reset = %s world %s", typ, got.WorldID)
	}
}

func TestServer_UnknownEnv(t *testing.T) {
	conn := dial(t, Config{Tuning: tuning.Defaults()})
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Env: "sokoban"})
	typ, e := recv[protocol.ErrorMsg](t, conn)
	if typ != protocol.TypeError || e.Code != protocol.ErrUnknownEnv {
		t.Fatalf("hello = %s %+v", typ, e)
	}
}
