package scoring

import (
	"fmt"
	"strings"
)

// WeightTolerance is the allowed distance of the weight sum from 1.0.
const WeightTolerance = 0.02

// ValidationError means the section weights break the sum or range invariant.
type ValidationError struct {
	Sum      float64
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid section weights: " + strings.Join(e.Problems, "; ")
}

// ValidateWeights checks that every weight is in [0,1] and that they sum to
// 1.0 within WeightTolerance.
func ValidateWeights(w SectionWeights) error {
	var problems []string
	for _, s := range Sections {
		if v := w[s]; v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("%s weight %.3f outside [0,1]", s, v))
		}
	}

	sum := w.Sum()
	if diff := sum - 1; diff > WeightTolerance || diff < -WeightTolerance {
		problems = append(problems, fmt.Sprintf("weights must sum to 1.0, got %.3f", sum))
	}

	if len(problems) > 0 {
		return &ValidationError{Sum: sum, Problems: problems}
	}
	return nil
}
