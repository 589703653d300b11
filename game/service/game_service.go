package service

import (
	"context"
	"errors"

	"github.com/wricardo/quizler/game/engine"
	"github.com/wricardo/quizler/game/quiz"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrQuizNotFound = errors.New("quiz not found")
	ErrInvalidQuiz  = errors.New("invalid quiz")
)

// GameService defines all game-related operations outside the websocket protocol
type GameService interface {
	// Game management
	CreateGame(ctx context.Context, req CreateGameRequest) (*GameInfo, error)
	GetGame(ctx context.Context, token string) (*GameInfo, error)
	ListGames(ctx context.Context) ([]*GameInfo, error)
	EndGame(ctx context.Context, token string) error

	// Quiz banks
	ListQuizzes(ctx context.Context) ([]*QuizInfo, error)
	LoadQuiz(ctx context.Context, quizID string) (*quiz.Quiz, error)
	SaveQuiz(ctx context.Context, quizID string, q *quiz.Quiz) error

	// Shutdown closes every live game and waits for them to tear down.
	Shutdown(ctx context.Context) error
}

// GameDirectory maps join tokens to live games
type GameDirectory interface {
	GenerateToken() string
	Register(token string, g *engine.Game) error
	Resolve(token string) (*engine.Game, error)
	Unregister(token string, g *engine.Game) bool
	List() []*engine.Game
}

// QuizStore handles quiz bank loading
type QuizStore interface {
	LoadQuiz(id string) (*quiz.Quiz, error)
	ListQuizzes() ([]*QuizInfo, error)
	GetDefault() (string, *quiz.Quiz)
	SaveQuiz(id string, q *quiz.Quiz) error
}
