package seu

import "strconv"

// Round3 rounds to three decimals, the precision of every published score.
// Rounding is done on the exact decimal value of v, so 0.2435 (stored as
// 0.24349999...) gives 0.243.
func Round3(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Mean returns the unweighted arithmetic mean of vs, or 0 for none.
func Mean(vs ...float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
