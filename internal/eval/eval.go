package eval

import (
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/axis"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/cube"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mode"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region eval-harness
// EvalHarness validates a synthesized cube before it is stored.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks the structural invariants of c. The mean-confidence check is
// informational and never fails the run.
func (h *EvalHarness) Run(c cube.Cube) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. All eight channels snapshotted
	present := 0
	for _, ch := range seu.Channels {
		if _, ok := c.ChannelMetas[ch]; ok {
			present++
		}
	}
	check("channel_metas", float64(present), present == len(seu.Channels) && len(c.ChannelMetas) == len(seu.Channels),
		fmt.Sprintf("%d of %d channel metas", present, len(seu.Channels)))

	// 2. Every activation and confidence within [0,1]
	outOfRange := countOutOfRange(c)
	check("value_range", float64(outOfRange), outOfRange == 0,
		fmt.Sprintf("%d values outside [0,1]", outOfRange))

	// 3. Seven mode scores, one per fixed mode
	modesOK := len(c.M.ModeScores) == len(mode.Modes)
	for _, m := range mode.Modes {
		if _, ok := c.M.ModeScores[m]; !ok {
			modesOK = false
		}
	}
	check("mode_scores", float64(len(c.M.ModeScores)), modesOK,
		fmt.Sprintf("mode_scores has %d keys, want the %d fixed modes", len(c.M.ModeScores), len(mode.Modes)))

	// 4. Published score matches the winner's entry
	diff := math.Abs(c.M.ModeScore - c.M.ModeScores[c.M.CognitiveMode])
	_, known := mode.Lookup(c.M.CognitiveMode)
	check("mode_score_consistency", diff, known && diff <= h.config.ScoreTolerance,
		fmt.Sprintf("mode %q score %.3f disagrees with its mode_scores entry", c.M.CognitiveMode, c.M.ModeScore))

	// 5. Axis sources are the fixed per-axis lists
	mismatched := 0
	for _, pair := range []struct{ got, want []seu.ChannelID }{
		{c.C.SourceChannels, axis.ContextSources},
		{c.I.SourceChannels, axis.IntentSources},
		{c.E.SourceChannels, axis.EmotionSources},
	} {
		if !slices.Equal(pair.got, pair.want) {
			mismatched++
		}
	}
	check("axis_sources", float64(mismatched), mismatched == 0,
		fmt.Sprintf("%d axes with unexpected source channels", mismatched))

	// 6. Stamp mirrors the classification
	stampOK := c.PAI.PipelineStatus == cube.PipelineStatusWritten && c.PAI.CognitiveMode == c.M.CognitiveMode
	check("pipeline_stamp", boolValue(stampOK), stampOK, "pipeline stamp does not match classification")

	// 7. Mean confidence: informational only
	meanConf := meanConfidence(c)
	metrics = append(metrics, EvalMetric{
		Name:  "mean_confidence",
		Value: meanConf,
		Pass:  meanConf >= h.config.MinMeanConfidence,
	})

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func countOutOfRange(c cube.Cube) int {
	n := 0
	in := func(v float64) {
		if v < 0 || v > 1 || math.IsNaN(v) {
			n++
		}
	}
	for _, snap := range c.ChannelMetas {
		in(snap.Activation)
		in(snap.Confidence)
	}
	in(c.C.Confidence)
	in(c.I.Confidence)
	in(c.I.Intensity)
	in(c.E.Confidence)
	in(c.E.Valence)
	return n
}

func meanConfidence(c cube.Cube) float64 {
	vs := make([]float64, 0, len(seu.Channels))
	for _, ch := range seu.Channels {
		if snap, ok := c.ChannelMetas[ch]; ok {
			vs = append(vs, snap.Confidence)
		}
	}
	return seu.Mean(vs...)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
