package signals

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region keyword-score

// ScoreKeywords scores text against positive and negative keyword sets.
// Each keyword counts once when it occurs as a case-insensitive substring.
// With no matches the score leans on bias, nudged up by text length;
// otherwise the positive ratio maps into [0.4, 1.0].
func ScoreKeywords(text string, positive, negative []string, bias float64) float64 {
	lower := strings.ToLower(text)
	p := countContained(lower, positive)
	n := countContained(lower, negative)
	if p+n == 0 {
		return seu.Round3(math.Min(float64(utf8.RuneCountInString(lower))/30.0, 1.0)*0.3 + bias*0.7)
	}
	return seu.Round3(math.Min(float64(p)/float64(p+n)*0.6+0.4, 1.0))
}

func countContained(lower string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			count++
		}
	}
	return count
}

// #endregion keyword-score

// #region helpers

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion helpers
