package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"guess-the-prompt/internal/config"
	"guess-the-prompt/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
)

func TestGameConfigFromFile(t *testing.T) {
	cfg := config.Default()
	cfg.Game.MaxRounds = 0
	cfg.Game.RoundDuration = "30s"
	cfg.Game.ResultDelay = "bogus"
	cfg.Game.ImageSelection = "random"

	got := gameConfig(cfg)
	if got.MaxRounds != 5 || got.RoundDuration != 30*time.Second || got.ResultDelay != 3*time.Second || got.ImageSelection != "random" {
		t.Fatalf("unexpected game config %+v", got)
	}
}

func TestBuildServiceInMemory(t *testing.T) {
	cfg := config.Default()
	service, coord, err := buildService(cfg, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer coord.Wait()

	fixtures, err := service.Fixtures(context.Background())
	if err != nil || len(fixtures) != 5 {
		t.Fatalf("expected bundled fixtures, got %d (%v)", len(fixtures), err)
	}

	cfg.Game.ScoringPolicy = "vibes"
	if _, _, err := buildService(cfg, nil, nil); err == nil {
		t.Fatalf("expected error for unknown scoring policy")
	}
}

func TestPrintLeaderboard(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	board := domain.Leaderboard{
		Entries: []domain.LeaderboardEntry{
			{Rank: 1, Name: "Ada", Score: 420, AverageTime: 12.5, FastestGuess: 4},
			{Rank: 2, Name: "Bob", Score: 150, AverageTime: 30, FastestGuess: 20},
		},
		TotalEntries: 7,
	}
	if err := printLeaderboard(cmd, board); err != nil {
		t.Fatalf("print: %v", err)
	}
	text := out.String()
	for _, want := range []string{"RANK", "Ada", "A+", "Bob", "C", "2 of 7 entries"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(t.TempDir() + "/missing.yaml")
	if err != nil {
		t.Fatalf("missing config must not fail: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Game.ScoringPolicy != "evaluator" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestHealthReportsLiveSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Set("game:session:a", "1")
	mr.Set("game:session:b", "1")
	mr.Set("game:fixtures", "[]")

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/leaderboard" {
			w.Write([]byte(`{"leaderboard": [], "total_entries": 0}`))
		}
	}))
	defer upstream.Close()

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "redis:\n  addr: " + mr.Addr() + "\n" +
		"evaluator:\n  base_url: " + upstream.URL + "\n" +
		"leaderboard:\n  base_url: " + upstream.URL + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	cmd := NewHealthCmd(&path)
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("health: %v\n%s", err, out.String())
	}
	text := out.String()
	for _, want := range []string{"evaluator    ok", "leaderboard  ok", "redis        ok", "sessions     2"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestHealthFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"leaderboard": []}`))
	}))
	defer upstream.Close()

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "redis:\n  addr: " + addr + "\n" +
		"evaluator:\n  base_url: " + upstream.URL + "\n" +
		"leaderboard:\n  base_url: " + upstream.URL + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	cmd := NewHealthCmd(&path)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(nil)
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected unhealthy redis to fail the check:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "redis        FAIL") {
		t.Fatalf("expected redis failure line:\n%s", out.String())
	}
}
