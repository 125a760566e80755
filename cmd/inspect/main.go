package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/cube"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mode"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to pai_cube.db")
	last := flag.Int("last", 20, "show N most recent cubes")
	seuID := flag.String("seu", "", "show single cube detail")
	events := flag.Bool("events", false, "show the event log (for --seu, that unit's events)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/pai_cube.db [--last N] [--seu id] [--events] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	switch {
	case *events:
		err = runEventsMode(ctx, store, *seuID, *last, *jsonOut)
	case *seuID != "":
		err = runDetailMode(ctx, store, *seuID, *jsonOut)
	default:
		err = runListMode(ctx, store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	SEUID     string    `json:"seu_id"`
	Mode      mode.Mode `json:"cognitive_mode"`
	Score     float64   `json:"mode_score"`
	Stale     bool      `json:"stale"`
	InputHash string    `json:"input_hash"`
	CreatedAt string    `json:"created_at"`
}

func runListMode(ctx context.Context, store *state.Store, last int, jsonOut bool) error {
	cubes, err := store.ListCubes(ctx, last)
	if err != nil {
		return err
	}
	if len(cubes) == 0 {
		fmt.Fprintln(os.Stderr, "no cubes found")
		return nil
	}

	// Store returns newest first; reverse for chronological.
	rows := make([]listRow, len(cubes))
	for i, cs := range cubes {
		rows[len(cubes)-1-i] = listRow{
			SEUID:     cs.SEUID,
			Mode:      cs.CognitiveMode,
			Score:     cs.ModeScore,
			Stale:     cs.Stale,
			InputHash: cs.InputHash,
			CreatedAt: cs.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-28s  %-15s  %6s  %-5s  %-12s  %s\n", "SEU", "Mode", "Score", "Stale", "Input", "Time")
	fmt.Printf("%-28s+-%-15s+-%6s+-%-5s+-%-12s+-%s\n",
		"----------------------------", "---------------", "------", "-----", "------------", "--------------------")
	counts := make(map[mode.Mode]int)
	for _, r := range rows {
		stale := ""
		if r.Stale {
			stale = "yes"
		}
		fmt.Printf("%-28s  %-15s  %6.3f  %-5s  %-12s  %s\n",
			r.SEUID, r.Mode, r.Score, stale, shortID(r.InputHash), r.CreatedAt)
		counts[r.Mode]++
	}

	fmt.Printf("\nMode counts:\n")
	for _, m := range mode.Modes {
		if counts[m] > 0 {
			fmt.Printf("  %-15s %d\n", m, counts[m])
		}
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(ctx context.Context, store *state.Store, seuID string, jsonOut bool) error {
	c, err := store.GetCube(ctx, seuID)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(c)
	}

	fmt.Printf("SEU:        %s\n", c.SEUID)
	fmt.Printf("Created:    %s\n", c.PAI.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Status:     %s\n", c.PAI.PipelineStatus)
	fmt.Printf("Input:      %s\n", c.InputHash)
	fmt.Printf("Mode:       %s (%s / %s) %.3f\n", c.M.CognitiveMode, c.M.ModeLabel, c.M.ModeLabelKo, c.M.ModeScore)
	fmt.Printf("Narrative:  %s\n", c.M.Narrative.EN)

	fmt.Printf("\nAxes:\n")
	fmt.Printf("  T  %-22s %s .. %s\n", c.T.Value, c.T.TsStart, c.T.TsEnd)
	fmt.Printf("  C  %-22s conf %.3f\n", c.C.Value, c.C.Confidence)
	fmt.Printf("  I  %-22s intensity %.3f conf %.3f\n", c.I.Value, c.I.Intensity, c.I.Confidence)
	fmt.Printf("  E  %-22s valence %.3f body %s conf %.3f\n", c.E.Value, c.E.Valence, c.E.BodyState, c.E.Confidence)

	fmt.Printf("\nChannels:\n")
	printChannels(c)

	fmt.Printf("\nMode scores:\n")
	printScores(c.M.ModeScores)
	return nil
}

func printChannels(c cube.Cube) {
	for _, ch := range seu.Channels {
		s, ok := c.ChannelMetas[ch]
		if !ok {
			fmt.Printf("  %-4s -\n", ch)
			continue
		}
		fmt.Printf("  %-4s %-18s act %.3f conf %.3f\n", ch, s.SignalType, s.Activation, s.Confidence)
	}
}

func printScores(scores map[mode.Mode]float64) {
	keys := make([]mode.Mode, 0, len(scores))
	for m := range scores {
		keys = append(keys, m)
	}
	sort.SliceStable(keys, func(i, j int) bool { return scores[keys[i]] > scores[keys[j]] })
	for _, m := range keys {
		fmt.Printf("  %-15s %.3f\n", m, scores[m])
	}
}

// #endregion detail-mode

// #region events-mode

func runEventsMode(ctx context.Context, store *state.Store, seuID string, last int, jsonOut bool) error {
	var (
		events []logging.Event
		err    error
	)
	if seuID != "" {
		events, err = logging.EventsForSEU(ctx, store.DB(), seuID)
	} else {
		events, err = logging.RecentEvents(ctx, store.DB(), last)
	}
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "no events found")
		return nil
	}

	for _, e := range events {
		payload, _ := json.Marshal(e.Payload)
		fmt.Printf("%s  %-24s %-28s %s\n",
			e.EmittedAt.Format("2006-01-02T15:04:05Z"), e.EventType, e.SEUID, payload)
	}
	return nil
}

// #endregion events-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
