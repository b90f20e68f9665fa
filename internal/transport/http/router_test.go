package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"guess-the-prompt/internal/app"
	"guess-the-prompt/internal/domain"
)

func TestRouterEndpoints(t *testing.T) {
	board := &fakeBoard{submitted: []domain.Summary{{Name: "Ada", Score: 320}}}
	server, _ := newTestServer(t, board)

	var health struct {
		OK       bool `json:"ok"`
		Sessions int  `json:"sessions"`
	}
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || !health.OK || health.Sessions != 0 {
		t.Fatalf("unexpected health %+v (%v)", health, err)
	}
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/fixtures")
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	var fixtures struct {
		Fixtures []map[string]any `json:"fixtures"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fixtures); err != nil {
		t.Fatalf("decode fixtures: %v", err)
	}
	resp.Body.Close()
	if len(fixtures.Fixtures) != 5 {
		t.Fatalf("expected 5 fixtures, got %d", len(fixtures.Fixtures))
	}
	if _, leaked := fixtures.Fixtures[0]["correctPrompt"]; leaked {
		t.Fatalf("fixtures endpoint must not expose prompts")
	}

	resp, err = http.Get(server.URL + "/api/fixtures/3")
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	var one map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&one); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	resp.Body.Close()
	if one["url"] != "/gorilla.jpg" || one["difficulty"] != "medium" {
		t.Fatalf("unexpected fixture %v", one)
	}
	if _, leaked := one["correctPrompt"]; leaked {
		t.Fatalf("fixture endpoint must not expose the prompt")
	}
	for path, want := range map[string]int{"/api/fixtures/42": http.StatusNotFound, "/api/fixtures/abc": http.StatusBadRequest} {
		resp, err = http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
	}

	resp, err = http.Get(server.URL + "/api/leaderboard?limit=3")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	var lb domain.Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	resp.Body.Close()
	if len(lb.Entries) != 1 || lb.Entries[0].Name != "Ada" {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}

	resp, err = http.Get(server.URL + "/api/sessions/missing")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSessionEndpointReturnsSnapshot(t *testing.T) {
	server, _ := newTestServer(t, &fakeBoard{})
	conn := dial(t, server, "?name=Cleo")

	var session sessionPayload
	if err := json.Unmarshal(readNext(conn, t, "session").Payload, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	readState(conn, t, app.PhasePlaying)

	resp, err := http.Get(server.URL + "/api/sessions/" + session.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	defer resp.Body.Close()
	var snap app.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.SessionID != session.SessionID || snap.Phase != app.PhasePlaying || snap.Player.Name != "Cleo" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	health, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer health.Body.Close()
	var body struct {
		Sessions int `json:"sessions"`
	}
	if err := json.NewDecoder(health.Body).Decode(&body); err != nil || body.Sessions != 1 {
		t.Fatalf("expected the open socket counted as a live session, got %+v (%v)", body, err)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrSessionNotFound: http.StatusNotFound,
		domain.ErrInvalidPhase:    http.StatusConflict,
		domain.ErrInvalidName:     http.StatusBadRequest,
		domain.ErrTooManyPlayers:  http.StatusBadRequest,
		domain.ErrFixtureNotFound: http.StatusNotFound,
		domain.ErrNoFixtures:      http.StatusServiceUnavailable,
		errors.New("boom"):        http.StatusBadGateway,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
	if got := statusFor(errors.Join(errors.New("wrapped"), domain.ErrGameNotEnded)); got != http.StatusConflict {
		t.Fatalf("wrapped error mapped to %d", got)
	}
}
