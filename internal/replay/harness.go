package replay

import (
	"sort"
	"time"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/cube"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/eval"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mode"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/signals"
)

// #region types
// Replay actions.
const (
	ActionClassified = "classified"
	ActionEvalReject = "eval_reject"
	ActionIncomplete = "incomplete"
)

// Unit is one recorded SEU for replay: its current raw per channel.
type Unit struct {
	SEUID string
	Raws  map[seu.ChannelID]seu.RawRecord
}

// ReplayConfig bundles the rule table, eval config and clock for a replay run.
type ReplayConfig struct {
	Rules      *signals.RuleSet // nil selects the embedded rules
	EvalConfig eval.EvalConfig
	Now        time.Time // stamped into every replayed cube
}

// DefaultReplayConfig returns the embedded rules, default eval thresholds and
// the Unix epoch as the stamp time.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		EvalConfig: eval.DefaultEvalConfig(),
		Now:        time.Unix(0, 0).UTC(),
	}
}

// ReplayResult captures the outcome of replaying one unit through the pipeline.
type ReplayResult struct {
	SEUID  string
	Action string // "classified" | "eval_reject" | "incomplete"
	Reason string
	Mode   mode.Mode
	Score  float64

	// Nil when the unit was incomplete.
	Cube       *cube.Cube
	EvalResult *eval.EvalResult
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalUnits  int
	Classified  int
	EvalRejects int
	Incomplete  int
	ModeCounts  map[mode.Mode]int
}

// Divergence is a unit whose replayed outcome differs from its expectation.
type Divergence struct {
	SEUID    string
	Expected FixtureExpectedResult
	Got      ReplayResult
}

// #endregion types

// #region replay
// Replay runs every unit through extract → meta → cube → eval, entirely in
// memory. Units are independent; order of results follows units.
func Replay(units []Unit, config ReplayConfig) []ReplayResult {
	producer := signals.NewProducer(config.Rules)
	evalInst := eval.NewEvalHarness(config.EvalConfig)
	results := make([]ReplayResult, 0, len(units))

	for _, u := range units {
		// 1. Completeness
		if ch, ok := firstMissing(u); ok {
			results = append(results, ReplayResult{
				SEUID:  u.SEUID,
				Action: ActionIncomplete,
				Reason: seu.MissingRaw(u.SEUID, ch).Error(),
			})
			continue
		}

		// 2. Metas
		metas := make(seu.MetaSet, len(seu.Channels))
		for _, ch := range seu.Channels {
			metas[ch] = signals.BuildMeta(ch, producer.BuildFeature(u.Raws[ch]))
		}

		// 3. Cube
		c := cube.Synthesize(u.SEUID, metas, u.Raws, config.Now)

		// 4. Eval
		evalResult := evalInst.Run(c)
		action := ActionClassified
		if !evalResult.Passed {
			action = ActionEvalReject
		}
		results = append(results, ReplayResult{
			SEUID:      u.SEUID,
			Action:     action,
			Reason:     evalResult.Reason,
			Mode:       c.M.CognitiveMode,
			Score:      c.M.ModeScore,
			Cube:       &c,
			EvalResult: &evalResult,
		})
	}

	return results
}

func firstMissing(u Unit) (seu.ChannelID, bool) {
	for _, ch := range seu.Channels {
		if _, ok := u.Raws[ch]; !ok {
			return ch, true
		}
	}
	return "", false
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{
		TotalUnits: len(results),
		ModeCounts: make(map[mode.Mode]int),
	}
	for _, r := range results {
		switch r.Action {
		case ActionClassified:
			s.Classified++
			s.ModeCounts[r.Mode]++
		case ActionEvalReject:
			s.EvalRejects++
		case ActionIncomplete:
			s.Incomplete++
		}
	}
	return s
}

// Compare matches results against expectations by SEU ID. Units without an
// expectation are skipped; an expectation without a result is a divergence.
// The mode is only compared when the expectation names one.
func Compare(results []ReplayResult, expected []FixtureExpectedResult) []Divergence {
	byID := make(map[string]ReplayResult, len(results))
	for _, r := range results {
		byID[r.SEUID] = r
	}

	var out []Divergence
	for _, exp := range expected {
		got, ok := byID[exp.SEUID]
		if !ok || got.Action != exp.Action || (exp.Mode != "" && string(got.Mode) != exp.Mode) {
			out = append(out, Divergence{SEUID: exp.SEUID, Expected: exp, Got: got})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SEUID < out[j].SEUID })
	return out
}

// #endregion replay
