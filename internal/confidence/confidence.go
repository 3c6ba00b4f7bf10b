// Package confidence turns a bounded pass/fail history into a confidence score.
package confidence

import (
	"fmt"

	"github.com/angelstreet/navtree/internal/model"
)

// Decay is the weight ratio between consecutive outcomes. The newest outcome
// weighs 1, the one before it Decay, then Decay², and so on.
const Decay = 0.8

// Score is a confidence value in [0,1]. Known is false when there is no
// history to score, which is distinct from a zero confidence.
type Score struct {
	Value float64 `yaml:"value" json:"value"`
	Known bool    `yaml:"known" json:"known"`
}

// Unknown is the score of an empty history.
var Unknown = Score{}

// Compute returns the recency-weighted pass ratio of history, which is
// ordered newest first.
func Compute(history model.RunHistory) Score {
	if len(history) == 0 {
		return Unknown
	}
	var passed, total float64
	w := 1.0
	for _, ok := range history {
		if ok {
			passed += w
		}
		total += w
		w *= Decay
	}
	return Score{Value: passed / total, Known: true}
}

// Percent returns the score as a whole percentage.
func (s Score) Percent() int {
	return int(s.Value*100 + 0.5)
}

// Ptr returns the value for optional fields, nil when unknown.
func (s Score) Ptr() *float64 {
	if !s.Known {
		return nil
	}
	v := s.Value
	return &v
}

func (s Score) String() string {
	if !s.Known {
		return "unknown"
	}
	return fmt.Sprintf("%d%%", s.Percent())
}
