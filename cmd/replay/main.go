package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mode"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/replay"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to pai_cube.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/pai_cube.db")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

// runDBMode re-derives every stored unit from its current raws and compares
// the replayed mode with the stored cube's.
func runDBMode(dbPath string) int {
	store, err := state.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	f, err := replay.Export(context.Background(), store, "replay of "+dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export units: %v\n", err)
		return 2
	}
	if len(f.ExpectedResults) == 0 {
		fmt.Fprintln(os.Stderr, "no stored cubes found")
		return 2
	}
	return replayFixture(f)
}

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	return replayFixture(f)
}

func replayFixture(f *replay.Fixture) int {
	units, err := f.ToUnits()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixture units: %v\n", err)
		return 2
	}
	results := replay.Replay(units, f.Config.ToReplayConfig())
	code := printComparison(results, f.ExpectedResults)
	printSummary(replay.Summarize(results))
	return code
}

// #endregion modes

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(results []replay.ReplayResult, expected []replay.FixtureExpectedResult) int {
	fmt.Printf("%-24s| %-15s| %-15s| %s\n", "SEU", "Expected", "Replayed", "Match")
	fmt.Printf("%-24s+%-15s+%-15s+%s\n",
		"------------------------", "----------------", "----------------", "------")

	byID := make(map[string]replay.ReplayResult, len(results))
	for _, r := range results {
		byID[r.SEUID] = r
	}
	diverged := make(map[string]bool)
	for _, d := range replay.Compare(results, expected) {
		diverged[d.SEUID] = true
	}

	for _, exp := range expected {
		got := byID[exp.SEUID]
		match := "OK"
		if diverged[exp.SEUID] {
			match = "DIFF"
		}
		fmt.Printf("%-24s| %-15s| %-15s| %s\n", exp.SEUID, outcome(exp.Action, exp.Mode), outcome(got.Action, string(got.Mode)), match)
	}

	diverge := len(diverged)
	total := len(expected)
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", total, total-diverge, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// outcome shows the mode for classified units and the action otherwise.
func outcome(action, m string) string {
	if action == replay.ActionClassified && m != "" {
		return m
	}
	if action == "" {
		return "-"
	}
	return action
}

func printSummary(s replay.ReplaySummary) {
	fmt.Printf("Replayed: %d units, %d classified, %d eval_reject, %d incomplete\n",
		s.TotalUnits, s.Classified, s.EvalRejects, s.Incomplete)
	modes := make([]string, 0, len(s.ModeCounts))
	for m := range s.ModeCounts {
		modes = append(modes, string(m))
	}
	sort.Strings(modes)
	for _, m := range modes {
		fmt.Printf("  %-15s %d\n", m, s.ModeCounts[mode.Mode(m)])
	}
}

// #endregion output
