package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/engine"
	"github.com/wricardo/quizler/game/quiz"
)

const registerAttempts = 5

// Options tunes the games created by the service
type Options struct {
	MaxPlayers   int
	SyncInterval time.Duration
	FinishGrace  time.Duration
	IdleTimeout  time.Duration
	Logger       *zap.Logger
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	games   GameDirectory
	quizzes QuizStore
	opts    Options
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	quizIDs map[string]string
}

// NewGameService creates a new game service instance
func NewGameService(games GameDirectory, quizzes QuizStore, opts Options) GameService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &gameServiceImpl{
		games:   games,
		quizzes: quizzes,
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		quizIDs: make(map[string]string),
	}
}

// CreateGame starts a new game and registers it under a fresh token
func (s *gameServiceImpl) CreateGame(ctx context.Context, req CreateGameRequest) (*GameInfo, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("service is shutting down")
	}

	quizID := req.QuizID
	var (
		q   *quiz.Quiz
		err error
	)
	if quizID != "" {
		q, err = s.quizzes.LoadQuiz(quizID)
		if err != nil {
			if errors.Is(err, ErrQuizNotFound) {
				return nil, s.quizNotFound(quizID)
			}
			return nil, fmt.Errorf("failed to load quiz %s: %w", quizID, err)
		}
	} else {
		quizID, q = s.quizzes.GetDefault()
	}

	q = q.Clone()
	if t := req.Timing; t != nil {
		if t.Countdown != 0 {
			q.Timing.Countdown = t.Countdown
		}
		if t.AnswerWindow != 0 {
			q.Timing.AnswerWindow = t.AnswerWindow
		}
		if t.Reveal != 0 {
			q.Timing.Reveal = t.Reveal
		}
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 && q.MaxPlayers == 0 {
		maxPlayers = s.opts.MaxPlayers
	}

	var g *engine.Game
	for attempt := 0; attempt < registerAttempts; attempt++ {
		g, err = engine.New(engine.Options{
			Token:        s.games.GenerateToken(),
			Quiz:         q,
			MaxPlayers:   maxPlayers,
			SyncInterval: s.opts.SyncInterval,
			FinishGrace:  s.opts.FinishGrace,
			IdleTimeout:  s.opts.IdleTimeout,
			Logger:       s.logger,
			OnClose:      s.onGameClosed,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
		}
		if err = s.games.Register(g.Token(), g); err == nil {
			break
		}
		g = nil
	}
	if g == nil {
		return nil, fmt.Errorf("failed to register game: %w", err)
	}

	s.mu.Lock()
	s.quizIDs[g.Token()] = quizID
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		g.Run(s.ctx)
	}()

	s.logger.Info("game created", zap.String("token", g.Token()), zap.String("quiz", quizID))
	return s.describe(ctx, g)
}

// GetGame retrieves information about a live game
func (s *gameServiceImpl) GetGame(ctx context.Context, token string) (*GameInfo, error) {
	g, err := s.games.Resolve(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, token)
	}
	return s.describe(ctx, g)
}

// ListGames returns all live games, oldest first
func (s *gameServiceImpl) ListGames(ctx context.Context) ([]*GameInfo, error) {
	games := s.games.List()
	result := make([]*GameInfo, 0, len(games))
	for _, g := range games {
		info, err := s.describe(ctx, g)
		if errors.Is(err, ErrGameNotFound) {
			// closed while listing
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// EndGame closes a game; participants see the final scores
func (s *gameServiceImpl) EndGame(ctx context.Context, token string) error {
	g, err := s.games.Resolve(token)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrGameNotFound, token)
	}
	g.Close()

	select {
	case <-g.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListQuizzes returns all available quiz banks
func (s *gameServiceImpl) ListQuizzes(ctx context.Context) ([]*QuizInfo, error) {
	return s.quizzes.ListQuizzes()
}

// LoadQuiz loads a quiz bank including its answer keys
func (s *gameServiceImpl) LoadQuiz(ctx context.Context, quizID string) (*quiz.Quiz, error) {
	q, err := s.quizzes.LoadQuiz(quizID)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			return nil, s.quizNotFound(quizID)
		}
		return nil, err
	}
	return q, nil
}

// SaveQuiz validates and stores a quiz bank
func (s *gameServiceImpl) SaveQuiz(ctx context.Context, quizID string, q *quiz.Quiz) error {
	if quizID == "" {
		return fmt.Errorf("quiz id is required")
	}
	return s.quizzes.SaveQuiz(quizID, q)
}

// Shutdown closes every live game and waits for them to tear down
func (s *gameServiceImpl) Shutdown(ctx context.Context) error {
	games := s.games.List()
	s.logger.Info("shutting down games", zap.Int("games", len(games)))
	for _, g := range games {
		g.Close()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for games to close: %w", ctx.Err())
	}
}

func (s *gameServiceImpl) describe(ctx context.Context, g *engine.Game) (*GameInfo, error) {
	snap, err := g.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrGameClosed) {
			return nil, fmt.Errorf("%w: %s", ErrGameNotFound, g.Token())
		}
		return nil, err
	}

	s.mu.RLock()
	quizID := s.quizIDs[g.Token()]
	s.mu.RUnlock()
	return gameInfoFromSnapshot(snap, quizID), nil
}

// onGameClosed runs on the game goroutine before Done is closed.
func (s *gameServiceImpl) onGameClosed(g *engine.Game) {
	s.games.Unregister(g.Token(), g)

	s.mu.Lock()
	delete(s.quizIDs, g.Token())
	s.mu.Unlock()

	s.logger.Info("game closed", zap.String("token", g.Token()))
}

// quizNotFound lists the available quiz ids to help the caller
func (s *gameServiceImpl) quizNotFound(quizID string) error {
	available, err := s.quizzes.ListQuizzes()
	if err == nil && len(available) > 0 {
		ids := make([]string, 0, len(available))
		for _, info := range available {
			ids = append(ids, info.QuizID)
		}
		return fmt.Errorf("%w: '%s'. Available quizzes: %v", ErrQuizNotFound, quizID, ids)
	}
	return fmt.Errorf("%w: '%s'. Use /api/quizzes to list available quizzes", ErrQuizNotFound, quizID)
}
