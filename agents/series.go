package agents

import "math"

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// cagr returns the compound annual growth rate in percent between the first
// and last value, one period apart per step. A non-positive base yields 0 and
// a non-positive end value yields -100.
func cagr(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	start, end := values[0], values[len(values)-1]
	if start <= 0 {
		return 0
	}
	if end <= 0 {
		return -100
	}
	periods := float64(len(values) - 1)
	return (math.Pow(end/start, 1/periods) - 1) * 100
}

// back returns the value n positions before the last one.
func back(values []float64, n int) (float64, bool) {
	i := len(values) - 1 - n
	if i < 0 {
		return 0, false
	}
	return values[i], true
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}

func capAt(v, limit float64) float64 {
	return math.Min(v, limit)
}
