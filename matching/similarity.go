package matching

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
)

// Similarity metric names accepted in the matching configuration.
const (
	MetricLevenshtein  = "levenshtein"
	MetricJaroWinkler  = "jaro-winkler"
	MetricSorensenDice = "sorensen-dice"
)

// Metric is a symmetric string similarity in [0,1] with Compare(x, x) == 1.
type Metric interface {
	Compare(a, b string) float64
}

// MetricFunc adapts a plain function to Metric.
type MetricFunc func(a, b string) float64

// Compare calls f(a, b).
func (f MetricFunc) Compare(a, b string) float64 {
	return f(a, b)
}

// NewMetric returns the metric registered under name. An empty name selects
// the Levenshtein ratio.
func NewMetric(name string) (Metric, error) {
	switch name {
	case "", MetricLevenshtein:
		return MetricFunc(levenshteinRatio), nil
	case MetricJaroWinkler:
		jw := metrics.NewJaroWinkler()
		return guard(func(a, b string) float64 { return strutil.Similarity(a, b, jw) }), nil
	case MetricSorensenDice:
		sd := metrics.NewSorensenDice()
		sd.NgramSize = 2
		return guard(func(a, b string) float64 { return strutil.Similarity(a, b, sd) }), nil
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", name)
	}
}

// guard pins the identity and empty-input cases so every metric agrees on
// them, and orders the arguments so greedy implementations stay symmetric.
func guard(fn func(a, b string) float64) MetricFunc {
	return func(a, b string) float64 {
		if a == b {
			return 1.0
		}
		if a == "" || b == "" {
			return 0.0
		}
		if b < a {
			a, b = b, a
		}
		return clamp(fn(a, b))
	}
}

func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return clamp(1.0 - float64(distance)/float64(longest))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// compareKey lower-cases s and folds whitespace runs to a single space.
func compareKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
