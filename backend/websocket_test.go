// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/flashcardNFC/fastball/backend/sim"
	"github.com/gorilla/websocket"
)

func dialSession(t *testing.T, base, sessionID, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u, _ := url.Parse(base)
	u.Scheme = "ws"
	u.Path = "/api/ws"
	u.RawQuery = "sessionId=" + sessionID
	header := http.Header{}
	if user != "" {
		header.Set("Cookie", mockAuthCookie+"="+user)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(u.String(), header)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

// readUntil reads messages until one of type want arrives and match, if
// set, accepts it.
func readUntil(t *testing.T, conn *websocket.Conn, want string, timeout time.Duration, match func(Message) bool) Message {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		conn.SetReadDeadline(deadline)
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Type == want && (match == nil || match(msg)) {
			return msg
		}
	}
}

func TestWebSocketPlay(t *testing.T) {
	srv, ts := newTestServer(t, Options{TickInterval: 10 * time.Millisecond, AutoPitch: false})
	const owner = "owner@example.com"
	s := createSession(t, ts.URL, owner, nil)

	conn, _, err := dialSession(t, ts.URL, s.ID, owner)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	hello := readUntil(t, conn, MsgTypeState, 2*time.Second, nil)
	if hello.Spectator || hello.SessionID != s.ID {
		t.Errorf("Owner greeting = %+v", hello)
	}
	if srv.Hubs().ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", srv.Hubs().ActiveCount())
	}

	t.Run("Ping", func(t *testing.T) {
		conn.WriteJSON(Message{Type: MsgTypePing})
		readUntil(t, conn, MsgTypePong, 2*time.Second, nil)
	})

	t.Run("InvalidMessage", func(t *testing.T) {
		conn.WriteJSON(Message{Type: "CHEAT"})
		readUntil(t, conn, MsgTypeError, 2*time.Second, nil)
	})

	t.Run("Pitch", func(t *testing.T) {
		if err := conn.WriteJSON(Message{Type: MsgTypeStart}); err != nil {
			t.Fatalf("WriteJSON failed: %v", err)
		}
		if err := conn.WriteJSON(Message{Type: MsgTypeStart}); err != nil {
			t.Fatalf("WriteJSON failed: %v", err)
		}

		outcome := readUntil(t, conn, MsgTypeOutcome, 10*time.Second, nil)
		if outcome.Outcome == nil || outcome.Outcome.Swung || outcome.Play == "" {
			t.Fatalf("Expected a taken pitch, got %+v", outcome)
		}

		state := readUntil(t, conn, MsgTypeState, 10*time.Second, func(m Message) bool { return m.Play != "" })
		if state.State == nil || state.State.Balls+state.State.Strikes != 1 {
			t.Errorf("Expected a one-pitch count, got %+v", state.State)
		}

		stored, err := srv.sessions.LoadSession(s.ID)
		if err != nil {
			t.Fatalf("LoadSession failed: %v", err)
		}
		if stored.Pitches != 1 || len(stored.Plays) != 1 || stored.State != *state.State {
			t.Errorf("Session not saved after the pitch: %+v", stored)
		}
	})

	t.Run("SimulateWhileBatting", func(t *testing.T) {
		conn.WriteJSON(Message{Type: MsgTypeSimulateHalf})
		readUntil(t, conn, MsgTypeError, 2*time.Second, nil)
	})
}

func TestWebSocketSpectator(t *testing.T) {
	_, ts := newTestServer(t, Options{TickInterval: 5 * time.Millisecond})
	s := createSession(t, ts.URL, "owner@example.com", nil)

	for _, user := range []string{"fan@example.com", ""} {
		conn, _, err := dialSession(t, ts.URL, s.ID, user)
		if err != nil {
			t.Fatalf("Dial as %q failed: %v", user, err)
		}
		hello := readUntil(t, conn, MsgTypeState, 2*time.Second, nil)
		if !hello.Spectator {
			t.Errorf("%q should be a spectator", user)
		}
		readUntil(t, conn, MsgTypeFrame, 2*time.Second, nil)

		conn.WriteJSON(Message{Type: MsgTypePing})
		readUntil(t, conn, MsgTypePong, 2*time.Second, nil)

		conn.WriteJSON(Message{Type: MsgTypeStart})
		if msg := readUntil(t, conn, MsgTypeError, 2*time.Second, nil); msg.Error == "" {
			t.Error("Expected an error message")
		}
	}
}

func TestWebSocketRejects(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	s := createSession(t, ts.URL, "owner@example.com", nil)

	if _, resp, err := dialSession(t, ts.URL, "not-a-uuid", "owner@example.com"); err == nil || resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %v", err)
	}
	if _, resp, err := dialSession(t, ts.URL, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", "owner@example.com"); err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing: expected 404, got %v", err)
	}

	if resp := doRequest(t, "DELETE", ts.URL+"/api/sessions/"+s.ID, "owner@example.com", nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status = %d", resp.StatusCode)
	}
	if _, resp, err := dialSession(t, ts.URL, s.ID, "owner@example.com"); err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted: expected 404, got %v", err)
	}
	if n := srv.Hubs().ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d, want 0", n)
	}
}

func TestHubStopClosesClients(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	const owner = "owner@example.com"
	s := createSession(t, ts.URL, owner, nil)

	conn, _, err := dialSession(t, ts.URL, s.ID, owner)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	readUntil(t, conn, MsgTypeFrame, 2*time.Second, nil)

	srv.Hubs().StopHub(s.ID)
	if n := srv.Hubs().ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d, want 0", n)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
				t.Logf("connection ended with %v", err)
			}
			break
		}
	}
}

func TestHubPausesWithoutOwner(t *testing.T) {
	ss, _ := newTestSessionStore(t, 0)
	s := newTestSession("owner@example.com")
	if err := ss.SaveSession(s); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	hm := NewHubManager(HubConfig{Sessions: ss, Delivery: DeliveryOptions{AutoPitch: true}})
	// The hub is not running; the test plays its goroutine.
	h := newHub(s, hm)
	owner := &wsClient{hub: h, send: make(chan Message, 1024), userId: s.OwnerID}
	fan := &wsClient{hub: h, send: make(chan Message, 1024), userId: "fan@example.com", spectator: true}

	h.addClient(fan, 0)
	if h.delivery.AutoPitch() {
		t.Error("Auto-pitch should wait for the owner")
	}
	h.addClient(owner, 0)
	h.handle(hubRequest{client: owner, msg: Message{Type: MsgTypeStart}, at: 0})
	if !h.delivery.Started() || !h.delivery.AutoPitch() {
		t.Fatalf("started=%v autoPitch=%v", h.delivery.Started(), h.delivery.AutoPitch())
	}

	h.removeClient(owner, 0)
	before := h.delivery.State()
	var now time.Duration
	for ; now < 10*time.Second; now += 10 * time.Millisecond {
		h.tick(now)
	}
	if got := h.delivery.State(); got != before {
		t.Errorf("Game moved without its owner: %+v -> %+v", before, got)
	}
	if h.delivery.Phase() != sim.PhaseIdle || h.session.Pitches != 0 {
		t.Errorf("phase %s, %d pitches after the owner left", h.delivery.Phase(), h.session.Pitches)
	}

	back := &wsClient{hub: h, send: make(chan Message, 1024), userId: s.OwnerID}
	h.addClient(back, now)
	resumed := now
	for ; now < resumed+sim.SideChangeDelay+100*time.Millisecond; now += 10 * time.Millisecond {
		h.tick(now)
	}
	if h.delivery.Phase() != sim.PhaseWindup {
		t.Errorf("Phase = %s after the owner returned, want %s", h.delivery.Phase(), sim.PhaseWindup)
	}
}

func TestJoinHubRetriesStoppedHub(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	const owner = "owner@example.com"
	s := createSession(t, ts.URL, owner, nil)
	hm := srv.Hubs()

	stale, err := hm.GetHub(s.ID)
	if err != nil {
		t.Fatalf("GetHub failed: %v", err)
	}
	// Reaped between GetHub and join.
	hm.StopHub(s.ID)

	c := &wsClient{send: make(chan Message, 16), userId: owner}
	got, err := hm.joinHub(s.ID, stale, c)
	if err != nil {
		t.Fatalf("joinHub failed: %v", err)
	}
	if got == stale || c.hub != got || c.spectator {
		t.Errorf("joined stale=%v hub match=%v spectator=%v", got == stale, c.hub == got, c.spectator)
	}
	hello := <-c.send
	if hello.Type != MsgTypeState || hello.SessionID != s.ID || hello.Spectator {
		t.Errorf("Greeting = %+v", hello)
	}
	if n := hm.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount = %d, want 1", n)
	}
}
