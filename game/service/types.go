package service

import (
	"time"

	"github.com/wricardo/quizler/game/engine"
	"github.com/wricardo/quizler/game/quiz"
)

// CreateGameRequest selects the quiz bank and optional overrides for a new game
type CreateGameRequest struct {
	QuizID     string           `json:"quiz_id"`
	Timing     *quiz.GameTiming `json:"timing,omitempty"` // zero fields keep the quiz value
	MaxPlayers int              `json:"max_players,omitempty"`
}

// GameInfo provides information about a live game
type GameInfo struct {
	Token         string          `json:"token"`
	QuizID        string          `json:"quiz_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	QuestionCount int             `json:"question_count"`
	MaxPlayers    int             `json:"max_players"`
	Timing        quiz.GameTiming `json:"timing"`
	State         quiz.GameState  `json:"state"`
	Host          quiz.SessionID  `json:"host,omitempty"`
	Players       []PlayerInfo    `json:"players"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PlayerInfo describes one participant of a game
type PlayerInfo struct {
	ID    quiz.SessionID `json:"id"`
	Name  string         `json:"name"`
	Score uint32         `json:"score"`
	Ready bool           `json:"ready"`
	Host  bool           `json:"host"`
}

// QuizInfo provides information about a quiz bank
type QuizInfo struct {
	Filename      string `json:"filename"`
	QuizID        string `json:"quiz_id"` // The identifier to use for game creation
	Title         string `json:"title"`
	Description   string `json:"description"`
	QuestionCount int    `json:"question_count"`
	MaxPlayers    int    `json:"max_players"`
	// PlayTime is the longest a game of this quiz can run, in milliseconds.
	PlayTime uint64 `json:"play_time"`
}

func gameInfoFromSnapshot(s engine.Snapshot, quizID string) *GameInfo {
	info := &GameInfo{
		Token:         s.Token,
		QuizID:        quizID,
		Title:         s.Basic.Title,
		Description:   s.Basic.Description,
		QuestionCount: s.Basic.QuestionCount,
		MaxPlayers:    s.Basic.MaxPlayers,
		Timing:        s.Timing,
		State:         s.State,
		Host:          s.Host,
		Players:       make([]PlayerInfo, 0, len(s.Players)),
		CreatedAt:     s.CreatedAt,
	}
	for _, p := range s.Players {
		info.Players = append(info.Players, PlayerInfo{
			ID:    p.ID,
			Name:  p.Name,
			Score: p.Score,
			Ready: p.Ready,
			Host:  p.Host,
		})
	}
	return info
}

// PlayTime returns the worst-case duration of a full game of q in milliseconds.
func PlayTime(q *quiz.Quiz) uint64 {
	n := uint64(len(q.Questions))
	return q.Timing.Countdown + n*(q.Timing.AnswerWindow+q.Timing.Reveal)
}
