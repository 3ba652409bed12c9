package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Garsondee/Tank-Arena/internal/frame"
	"github.com/Garsondee/Tank-Arena/internal/game"
	"github.com/Garsondee/Tank-Arena/internal/spectate"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
)

type runStats struct {
	runIndex int
	seed     int64
	level    string

	frames  int
	outcome game.BattleOutcome
	score   [2]int

	firstShotFrame    int
	firstKillFrame    int
	firstPickupFrame  int
	firstRespawnFrame int

	shots    int
	kills    int
	bricks   int
	pickups  int
	respawns int
	pickedBy map[string]int

	grades []game.TankGrade
}

type options struct {
	runs     int
	seconds  float64
	seedBase int64
	seedStep int64
	level    int
	bots     int
	pngDir   string
	copy     bool
	spectate string
}

func main() {
	var opts options
	flag.IntVar(&opts.runs, "runs", 5, "number of headless matches")
	flag.Float64Var(&opts.seconds, "seconds", 60, "match length in seconds")
	flag.Int64Var(&opts.seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&opts.seedStep, "seed-step", 1, "seed increment between runs")
	flag.IntVar(&opts.level, "level", -1, "arena index, -1 rotates by seed")
	flag.IntVar(&opts.bots, "bots", 3, "AI tanks beside the autopilot player")
	flag.StringVar(&opts.pngDir, "png", "", "directory for final-frame PNGs")
	flag.BoolVar(&opts.copy, "copy", false, "copy the report to the clipboard")
	flag.StringVar(&opts.spectate, "spectate", "", "serve live frames on this address while running")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "headless"})

	if err := validate(opts); err != nil {
		logger.Error("bad flags", "err", err)
		os.Exit(2)
	}

	var hub *spectate.Hub
	if opts.spectate != "" {
		hub = spectate.NewHub(logger)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := hub.Serve(ctx, opts.spectate); err != nil {
				logger.Error("spectate server", "err", err)
			}
		}()
		defer hub.Close()
	}

	var out strings.Builder
	fmt.Fprintf(&out, "=== Headless Match Report ===\n")
	fmt.Fprintf(&out, "runs=%d seconds=%.0f seed_base=%d seed_step=%d bots=%d\n\n",
		opts.runs, opts.seconds, opts.seedBase, opts.seedStep, opts.bots)

	all := make([]runStats, 0, opts.runs)
	for i := 0; i < opts.runs; i++ {
		seed := opts.seedBase + int64(i)*opts.seedStep
		ts := newRun(opts, seed, hub)
		rs := collect(i+1, ts)
		all = append(all, rs)
		out.WriteString(formatRun(rs))

		if opts.pngDir != "" {
			snap := ts.Engine.Snapshot()
			path := filepath.Join(opts.pngDir, fmt.Sprintf("run-%02d-seed-%d.png", rs.runIndex, rs.seed))
			if err := saveFrame(&snap, path); err != nil {
				logger.Warn("could not save frame", "path", path, "err", err)
			}
		}
	}
	out.WriteString(formatAggregate(all))

	fmt.Print(out.String())
	if opts.copy {
		if err := clipboard.WriteAll(out.String()); err != nil {
			logger.Warn("clipboard unavailable", "err", err)
		}
	}
}

func validate(opts options) error {
	switch {
	case opts.runs <= 0:
		return fmt.Errorf("-runs must be > 0")
	case opts.seconds <= 0:
		return fmt.Errorf("-seconds must be > 0")
	case opts.bots < 1:
		return fmt.Errorf("-bots must be >= 1")
	case opts.level >= len(game.LevelNames):
		return fmt.Errorf("-level must be < %d", len(game.LevelNames))
	}
	return nil
}

// newRun plays one autopilot match to completion.
func newRun(opts options, seed int64, hub *spectate.Hub) *game.TestSim {
	tu := game.DefaultTuning()
	tu.MatchSeconds = opts.seconds
	level := opts.level
	if level < 0 {
		level = int(seed % int64(len(game.LevelNames)))
		if level < 0 {
			level += len(game.LevelNames)
		}
	}
	ts := game.NewTestSim(
		game.WithSimSeed(seed),
		game.WithSimLevel(level),
		game.WithSimBots(opts.bots),
		game.WithSimTuning(tu),
		game.WithSimAutopilot(),
		game.WithSimVerbose(true),
	)
	for !ts.Engine.Ended() {
		ts.RunFrames(1)
		if hub != nil {
			_ = hub.Publish(ts.Engine.Snapshot())
		}
	}
	return ts
}

func collect(runIndex int, ts *game.TestSim) runStats {
	st := ts.Engine.State()
	rs := runStats{
		runIndex:          runIndex,
		seed:              ts.Engine.Seed(),
		level:             ts.Engine.LevelName(),
		frames:            st.Frame,
		outcome:           st.Outcome,
		score:             st.Score,
		firstShotFrame:    firstFrame(ts.SimLog, "combat", "shot_fired"),
		firstKillFrame:    firstFrame(ts.SimLog, "combat", "tank_destroyed"),
		firstPickupFrame:  firstFrame(ts.SimLog, "powerup", "collected"),
		firstRespawnFrame: firstFrame(ts.SimLog, "life", "respawn"),
		shots:             ts.SimLog.CountCategory("combat", "shot_fired"),
		kills:             ts.SimLog.CountCategory("combat", "tank_destroyed"),
		bricks:            ts.SimLog.CountCategory("map", "brick_destroyed"),
		pickups:           ts.SimLog.CountCategory("powerup", "collected"),
		respawns:          ts.SimLog.CountCategory("life", "respawn"),
		pickedBy:          map[string]int{},
		grades:            game.GradeTanks(st),
	}
	for _, e := range ts.SimLog.Filter("powerup", "collected") {
		rs.pickedBy[e.Value]++
	}
	return rs
}

// saveFrame writes the final board at half scale.
func saveFrame(snap *game.Snapshot, path string) error {
	w := int(game.MapCols * game.TileSize / 2)
	return frame.Save(snap, path, w)
}

func firstFrame(sl *game.SimLog, category, key string) int {
	if e, ok := sl.FirstOf(category, key); ok {
		return e.Frame
	}
	return -1
}

// detectStalemate flags runs where the arena kept the teams apart: a draw
// with few kills relative to the shots fired.
func detectStalemate(rs runStats) (bool, string) {
	if rs.outcome != game.OutcomeDraw {
		return false, "decisive"
	}
	if rs.kills == 0 {
		if rs.shots == 0 {
			return true, "no_fire"
		}
		return true, "no_kills"
	}
	if rs.shots > 0 && float64(rs.kills)/float64(rs.shots) < 0.02 {
		return true, "low_lethality"
	}
	return false, "even_trade"
}

func formatRun(rs runStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Run %d (seed=%d level=%s) ---\n", rs.runIndex, rs.seed, rs.level)
	fmt.Fprintf(&b, "result: %s  BLUE %d - %d RED  frames=%d\n",
		rs.outcome, rs.score[game.TeamBlue], rs.score[game.TeamRed], rs.frames)
	fmt.Fprintf(&b, "phase_markers: first_shot=%d first_kill=%d first_pickup=%d first_respawn=%d\n",
		rs.firstShotFrame, rs.firstKillFrame, rs.firstPickupFrame, rs.firstRespawnFrame)
	fmt.Fprintf(&b, "event_totals: shots=%d kills=%d bricks=%d pickups=%d respawns=%d\n",
		rs.shots, rs.kills, rs.bricks, rs.pickups, rs.respawns)
	fmt.Fprintf(&b, "pickups_by_kind: %s\n", joinCounts(rs.pickedBy))
	if stale, reason := detectStalemate(rs); stale {
		fmt.Fprintf(&b, "stalemate: %s\n", reason)
	}
	b.WriteString(game.FormatGrades(rs.grades))
	b.WriteString("\n")
	return b.String()
}

func formatAggregate(all []runStats) string {
	var b strings.Builder
	outcomes := map[game.BattleOutcome]int{}
	totalShots, totalKills, totalBricks, totalPickups := 0, 0, 0, 0
	killFrames := make([]int, 0, len(all))
	stalemates := 0

	// Per-tank aggregate across runs, keyed by username.
	type tankAgg struct {
		scoreSum float64
		count    int
		kills    int
		deaths   int
	}
	tanks := map[string]*tankAgg{}
	var grades []game.TankGrade

	for _, rs := range all {
		outcomes[rs.outcome]++
		totalShots += rs.shots
		totalKills += rs.kills
		totalBricks += rs.bricks
		totalPickups += rs.pickups
		if rs.firstKillFrame >= 0 {
			killFrames = append(killFrames, rs.firstKillFrame)
		}
		if stale, _ := detectStalemate(rs); stale {
			stalemates++
		}
		for _, g := range rs.grades {
			ag, ok := tanks[g.Username]
			if !ok {
				ag = &tankAgg{}
				tanks[g.Username] = ag
			}
			ag.scoreSum += g.Score
			ag.count++
			ag.kills += g.Stats.Kills
			ag.deaths += g.Stats.Deaths
		}
		grades = append(grades, rs.grades...)
	}

	n := len(all)
	fmt.Fprintf(&b, "=== Aggregate ===\n")
	fmt.Fprintf(&b, "runs=%d\n", n)
	fmt.Fprintf(&b, "win_rates: blue=%.0f%% red=%.0f%% draw=%.0f%% stalemates=%d\n",
		pct(outcomes[game.OutcomeBlueVictory], n), pct(outcomes[game.OutcomeRedVictory], n),
		pct(outcomes[game.OutcomeDraw], n), stalemates)
	fmt.Fprintf(&b, "avg_events_per_run: shots=%.1f kills=%.1f bricks=%.1f pickups=%.1f\n",
		avg(totalShots, n), avg(totalKills, n), avg(totalBricks, n), avg(totalPickups, n))
	fmt.Fprintf(&b, "first_kill_avg_frame=%s\n", avgFrameString(killFrames))

	b.WriteString("\n=== Aggregate Tank Performance ===\n")
	names := make([]string, 0, len(tanks))
	for name := range tanks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ag := tanks[name]
		avgScore := ag.scoreSum / float64(ag.count)
		fmt.Fprintf(&b, "  %-8s %s (avg=%.1f)  K=%d D=%d\n",
			name, game.LetterGrade(avgScore), avgScore, ag.kills, ag.deaths)
	}

	if n > 0 {
		b.WriteString("\n--- Team Summary (across all runs) ---\n")
		b.WriteString(game.FormatGradesSummary(grades))
	}
	return b.String()
}

func pct(count, n int) float64 {
	return avg(count, n) * 100
}

func avg(sum int, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func avgFrameString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

func joinCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ",")
}
