package main

import (
	"math/rand/v2"

	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
)

// Strategy picks the choices a bot submits for a question.
type Strategy interface {
	Choose(q protocol.Question) []int
}

// RandomStrategy guesses. Single questions get one choice, Multiple
// questions a random non-empty subset.
type RandomStrategy struct {
	rng *rand.Rand
}

func NewRandomStrategy(rng *rand.Rand) *RandomStrategy {
	return &RandomStrategy{rng: rng}
}

func (s *RandomStrategy) Choose(q protocol.Question) []int {
	n := len(q.Answers)
	if n == 0 {
		return nil
	}
	if q.Kind != quiz.Multiple {
		return []int{s.rng.IntN(n)}
	}

	var choices []int
	for i := 0; i < n; i++ {
		if s.rng.IntN(2) == 0 {
			choices = append(choices, i)
		}
	}
	if len(choices) == 0 {
		choices = append(choices, s.rng.IntN(n))
	}
	return choices
}

// OracleStrategy knows the answer key and answers correctly with the given
// probability, guessing otherwise.
type OracleStrategy struct {
	key      *quiz.Quiz
	accuracy float64
	rng      *rand.Rand
	guess    *RandomStrategy
}

func NewOracleStrategy(key *quiz.Quiz, accuracy float64, rng *rand.Rand) *OracleStrategy {
	return &OracleStrategy{
		key:      key,
		accuracy: accuracy,
		rng:      rng,
		guess:    NewRandomStrategy(rng),
	}
}

func (s *OracleStrategy) Choose(q protocol.Question) []int {
	if q.Index < 0 || q.Index >= len(s.key.Questions) || s.rng.Float64() >= s.accuracy {
		return s.guess.Choose(q)
	}
	correct := s.key.Questions[q.Index].Correct
	if q.Kind != quiz.Multiple {
		return []int{correct[0]}
	}
	return append([]int(nil), correct...)
}
