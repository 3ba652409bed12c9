package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Garsondee/Tank-Arena/internal/game"
)

func TestDetectStalemate_NoKillsDraw(t *testing.T) {
	rs := runStats{outcome: game.OutcomeDraw, shots: 40}
	stale, reason := detectStalemate(rs)
	if !stale {
		t.Fatalf("expected stalemate=true, got false (reason=%s)", reason)
	}
	if reason != "no_kills" {
		t.Fatalf("expected reason no_kills, got: %s", reason)
	}
}

func TestDetectStalemate_FalseWhenDecisive(t *testing.T) {
	rs := runStats{outcome: game.OutcomeRedVictory, shots: 200, kills: 1}
	if stale, reason := detectStalemate(rs); stale {
		t.Fatalf("expected stalemate=false for a decisive run (reason=%s)", reason)
	}
}

func TestDetectStalemate_LowLethalityDraw(t *testing.T) {
	rs := runStats{outcome: game.OutcomeDraw, shots: 500, kills: 2}
	stale, reason := detectStalemate(rs)
	if !stale || reason != "low_lethality" {
		t.Fatalf("expected low_lethality stalemate, got %v/%s", stale, reason)
	}
	rs.kills = 20
	if stale, reason = detectStalemate(rs); stale {
		t.Fatalf("expected an even trade, got stalemate (reason=%s)", reason)
	}
}

func TestValidate(t *testing.T) {
	good := options{runs: 1, seconds: 10, bots: 1, level: -1}
	if err := validate(good); err != nil {
		t.Fatalf("expected valid options, got %v", err)
	}
	bad := good
	bad.level = len(game.LevelNames)
	if err := validate(bad); err == nil {
		t.Fatal("expected an out-of-range level to be rejected")
	}
	bad = good
	bad.bots = 0
	if err := validate(bad); err == nil {
		t.Fatal("expected zero bots to be rejected")
	}
}

func TestRunAndReport(t *testing.T) {
	opts := options{runs: 1, seconds: 5, seedBase: 7, seedStep: 1, level: -1, bots: 3}
	ts := newRun(opts, 7, nil)
	if !ts.Engine.Ended() {
		t.Fatal("expected the run to play to the end")
	}
	rs := collect(1, ts)
	if rs.level != game.LevelNames[7%len(game.LevelNames)] {
		t.Fatalf("expected level rotated by seed, got %s", rs.level)
	}
	if rs.frames < 5*game.FPS || rs.frames > 5*game.FPS+1 {
		t.Fatalf("expected about %d frames, got %d", 5*game.FPS, rs.frames)
	}
	if rs.kills != rs.score[game.TeamBlue]+rs.score[game.TeamRed] {
		t.Fatalf("kills %d do not match score %v", rs.kills, rs.score)
	}

	run := formatRun(rs)
	for _, want := range []string{"--- Run 1 (seed=7", "event_totals:", "Tank Performance Grades"} {
		if !strings.Contains(run, want) {
			t.Fatalf("run report missing %q:\n%s", want, run)
		}
	}
	agg := formatAggregate([]runStats{rs})
	for _, want := range []string{"runs=1", "win_rates:", "PLAYER", "Team Summary"} {
		if !strings.Contains(agg, want) {
			t.Fatalf("aggregate missing %q:\n%s", want, agg)
		}
	}
}

func TestJoinCounts(t *testing.T) {
	if got := joinCounts(nil); got != "none" {
		t.Fatalf("expected none, got %q", got)
	}
	if got := joinCounts(map[string]int{"SPEED": 2, "DAMAGE": 1}); got != "DAMAGE=1,SPEED=2" {
		t.Fatalf("unexpected join %q", got)
	}
}

func TestRunFramePNG(t *testing.T) {
	ts := newRun(options{seconds: 1, bots: 1, level: 0}, 3, nil)
	snap := ts.Engine.Snapshot()
	path := filepath.Join(t.TempDir(), "out", "final.png")
	if err := saveFrame(&snap, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected PNG on disk: %v", err)
	}
}
