package quiz

import "time"

// SessionID identifies one admitted participant within a single game.
type SessionID uint32

// QuestionKind selects how an answer is checked against the key.
type QuestionKind string

const (
	// Single questions accept exactly one choice, which must be in the key.
	Single QuestionKind = "Single"
	// Multiple questions require the chosen set to equal the key set.
	Multiple QuestionKind = "Multiple"

	// Validation constants
	MinAnswers      = 2
	MaxAnswers      = 8
	MaxQuestions    = 200
	MaxTitleLength  = 80
	MaxNameLength   = 32
	MinPhaseMillis  = 1
	MaxPhaseMillis  = 10 * 60 * 1000
	DefaultCorrect  = 500
	DefaultSpeedMax = 500
)

// BasicConfig is the public metadata of a game, fixed at creation.
type BasicConfig struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"question_count"`
	MaxPlayers    int    `json:"max_players"`
}

// GameTiming holds the phase durations of a game in milliseconds.
type GameTiming struct {
	Countdown    uint64 `json:"countdown" yaml:"countdown"`
	AnswerWindow uint64 `json:"answer_window" yaml:"answer_window"`
	Reveal       uint64 `json:"reveal" yaml:"reveal"`
}

// CountdownDuration returns the Starting phase length.
func (t GameTiming) CountdownDuration() time.Duration {
	return time.Duration(t.Countdown) * time.Millisecond
}

// AnswerDuration returns the length of each Question phase.
func (t GameTiming) AnswerDuration() time.Duration {
	return time.Duration(t.AnswerWindow) * time.Millisecond
}

// RevealDuration returns the length of each Reveal phase.
func (t GameTiming) RevealDuration() time.Duration {
	return time.Duration(t.Reveal) * time.Millisecond
}

// DefaultTiming returns the timing used when a quiz bank does not set one.
func DefaultTiming() GameTiming {
	return GameTiming{
		Countdown:    3000,
		AnswerWindow: 10000,
		Reveal:       5000,
	}
}

// Scoring controls how many points an answer is worth.
type Scoring struct {
	Correct    uint32 `json:"correct" yaml:"correct"`
	SpeedBonus uint32 `json:"speed_bonus" yaml:"speed_bonus"`
}

// Question is one entry of a quiz bank, including its answer key.
type Question struct {
	Text    string       `json:"text" yaml:"text"`
	Image   string       `json:"image,omitempty" yaml:"image,omitempty"`
	Kind    QuestionKind `json:"kind" yaml:"kind"`
	Answers []string     `json:"answers" yaml:"answers"`
	Correct []int        `json:"correct" yaml:"correct"`
}

// QuestionAnswer is a participant's submission for one question index.
type QuestionAnswer struct {
	Index   int   `json:"index"`
	Choices []int `json:"choices"`
}

// AnswerResult is the outcome of one participant's answer after reveal.
type AnswerResult struct {
	Index   int    `json:"index"`
	Correct bool   `json:"correct"`
	Score   uint32 `json:"score"`
	Total   uint32 `json:"total"`
}

// Quiz is a complete question bank.
type Quiz struct {
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	MaxPlayers  int        `json:"max_players,omitempty" yaml:"max_players,omitempty"`
	Timing      GameTiming `json:"timing" yaml:"timing"`
	Scoring     Scoring    `json:"scoring" yaml:"scoring"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// Basic derives the public BasicConfig of the quiz.
func (q *Quiz) Basic() BasicConfig {
	return BasicConfig{
		Title:         q.Title,
		Description:   q.Description,
		QuestionCount: len(q.Questions),
		MaxPlayers:    q.MaxPlayers,
	}
}

// ApplyDefaults fills zero timing and scoring values.
func (q *Quiz) ApplyDefaults() {
	def := DefaultTiming()
	if q.Timing.Countdown == 0 {
		q.Timing.Countdown = def.Countdown
	}
	if q.Timing.AnswerWindow == 0 {
		q.Timing.AnswerWindow = def.AnswerWindow
	}
	if q.Timing.Reveal == 0 {
		q.Timing.Reveal = def.Reveal
	}
	if q.Scoring.Correct == 0 && q.Scoring.SpeedBonus == 0 {
		q.Scoring = Scoring{Correct: DefaultCorrect, SpeedBonus: DefaultSpeedMax}
	}
	for i := range q.Questions {
		if q.Questions[i].Kind == "" {
			q.Questions[i].Kind = Single
		}
	}
}

// Clone returns a deep copy so a running game never shares slices with the store.
func (q *Quiz) Clone() *Quiz {
	c := *q
	c.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Answers = append([]string(nil), question.Answers...)
		question.Correct = append([]int(nil), question.Correct...)
		c.Questions[i] = question
	}
	return &c
}
