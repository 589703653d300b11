package quiz

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateQuiz checks that a quiz bank is complete and playable.
func ValidateQuiz(q *Quiz) error {
	if q == nil {
		return fmt.Errorf("quiz validation: quiz is nil")
	}
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("quiz validation: title is required")
	}
	if utf8.RuneCountInString(q.Title) > MaxTitleLength {
		return fmt.Errorf("quiz validation: title must be at most %d characters", MaxTitleLength)
	}
	if q.MaxPlayers < 0 {
		return fmt.Errorf("quiz validation: max_players must not be negative, got %d", q.MaxPlayers)
	}

	if err := validateTiming(q.Timing); err != nil {
		return err
	}

	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz validation: at least one question is required")
	}
	if len(q.Questions) > MaxQuestions {
		return fmt.Errorf("quiz validation: at most %d questions are allowed, got %d", MaxQuestions, len(q.Questions))
	}

	for i := range q.Questions {
		if err := validateQuestion(&q.Questions[i]); err != nil {
			return fmt.Errorf("quiz validation: question %d: %w", i+1, err)
		}
	}
	return nil
}

func validateTiming(t GameTiming) error {
	fields := []struct {
		name  string
		value uint64
	}{
		{"countdown", t.Countdown},
		{"answer_window", t.AnswerWindow},
		{"reveal", t.Reveal},
	}
	for _, f := range fields {
		if f.value < MinPhaseMillis || f.value > MaxPhaseMillis {
			return fmt.Errorf("quiz validation: timing.%s must be between %d and %d ms, got %d",
				f.name, MinPhaseMillis, MaxPhaseMillis, f.value)
		}
	}
	return nil
}

func validateQuestion(q *Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if len(q.Answers) < MinAnswers || len(q.Answers) > MaxAnswers {
		return fmt.Errorf("must have between %d and %d answers, got %d", MinAnswers, MaxAnswers, len(q.Answers))
	}
	for i, a := range q.Answers {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("answer %d is empty", i+1)
		}
	}

	switch q.Kind {
	case Single, Multiple:
	default:
		return fmt.Errorf("kind must be %q or %q, got %q", Single, Multiple, q.Kind)
	}

	if len(q.Correct) == 0 {
		return fmt.Errorf("at least one correct answer is required")
	}
	for _, c := range q.Correct {
		if c < 0 || c >= len(q.Answers) {
			return fmt.Errorf("correct answer %d is out of range", c)
		}
	}
	return nil
}
