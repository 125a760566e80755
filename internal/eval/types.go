package eval

// #region eval-config
// EvalConfig holds thresholds for post-build cube validation.
type EvalConfig struct {
	ScoreTolerance    float64 // max |mode_score - mode_scores[cognitive_mode]|
	MinMeanConfidence float64 // warn if mean channel confidence falls below this
}

// DefaultEvalConfig returns the thresholds the controller runs with.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		ScoreTolerance:    1e-9,
		MinMeanConfidence: 0.3,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-build validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
