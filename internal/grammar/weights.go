package grammar

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// WeightPolicy decides how explicit and missing weights turn into
// selection probabilities.
type WeightPolicy int

const (
	// WeightRemainder treats explicit weights as probabilities and splits the
	// leftover mass evenly between unweighted alternatives.
	WeightRemainder WeightPolicy = iota
	// WeightRelative treats weights as relative scores; unweighted
	// alternatives score 1.
	WeightRelative
)

const weightEpsilon = 1e-9

// String returns the config name of the policy.
func (p WeightPolicy) String() string {
	switch p {
	case WeightRelative:
		return "relative"
	default:
		return "remainder"
	}
}

// ParseWeightPolicy parses a config value. Empty means WeightRemainder.
func ParseWeightPolicy(s string) (WeightPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "remainder":
		return WeightRemainder, nil
	case "relative":
		return WeightRelative, nil
	default:
		return WeightRemainder, errors.Errorf("unknown weight policy %q", s)
	}
}

// distribute computes a probability vector. set[i] marks weights[i] as explicit.
func (p WeightPolicy) distribute(weights []float64, set []bool) ([]float64, error) {
	n := len(weights)
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	explicit := 0.0
	unweighted := 0
	for i, w := range weights {
		if !set[i] {
			unweighted++
			continue
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, errors.Errorf("alternative %d has invalid weight %v", i, w)
		}
		explicit += w
	}
	uniform := func() []float64 {
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out
	}
	switch p {
	case WeightRelative:
		total := explicit + float64(unweighted)
		if total <= 0 {
			return uniform(), nil
		}
		for i, w := range weights {
			if !set[i] {
				w = 1
			}
			out[i] = w / total
		}
		return out, nil
	default:
		if unweighted == 0 {
			if explicit <= 0 {
				return uniform(), nil
			}
			for i, w := range weights {
				out[i] = w / explicit
			}
			return out, nil
		}
		if explicit > 1+weightEpsilon {
			return nil, errors.Errorf("explicit weights sum to %v, more than 1", explicit)
		}
		share := math.Max(0, 1-explicit) / float64(unweighted)
		for i, w := range weights {
			if set[i] {
				out[i] = w
			} else {
				out[i] = share
			}
		}
		return out, nil
	}
}
