package quiz

import (
	"sort"
	"time"
)

// IsCorrect checks choices against the question's answer key.
// Out-of-range choices make the answer wrong.
func (q *Question) IsCorrect(choices []int) bool {
	if len(choices) == 0 {
		return false
	}
	for _, c := range choices {
		if c < 0 || c >= len(q.Answers) {
			return false
		}
	}

	switch q.Kind {
	case Multiple:
		return sameSet(choices, q.Correct)
	default:
		if len(choices) != 1 {
			return false
		}
		for _, k := range q.Correct {
			if k == choices[0] {
				return true
			}
		}
		return false
	}
}

func sameSet(a, b []int) bool {
	x, y := dedupe(a), dedupe(b)
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func dedupe(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}

// SpeedBonus returns the bonus for an answer received elapsed after the
// question opened. It falls linearly from maxBonus at 0 to 0 at window.
func SpeedBonus(maxBonus uint32, elapsed, window time.Duration) uint32 {
	if window <= 0 || elapsed >= window {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := window - elapsed
	return uint32(float64(maxBonus) * float64(remaining) / float64(window))
}

// Points scores a single answer. answered is false when the participant
// submitted nothing before the phase ended.
func (s Scoring) Points(q *Question, answered bool, choices []int, elapsed, window time.Duration) (bool, uint32) {
	if !answered || !q.IsCorrect(choices) {
		return false, 0
	}
	return true, s.Correct + SpeedBonus(s.SpeedBonus, elapsed, window)
}
