package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/quizler/game/directory"
	"github.com/wricardo/quizler/game/engine"
	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
	"github.com/wricardo/quizler/game/service"
)

// MockQuizStore implements service.QuizStore for testing
type MockQuizStore struct {
	quizzes map[string]*quiz.Quiz
	saved   map[string]*quiz.Quiz
}

func NewMockQuizStore() *MockQuizStore {
	capitals := &quiz.Quiz{
		Title:   "Capitals",
		Timing:  quiz.GameTiming{Countdown: 3000, AnswerWindow: 10000, Reveal: 5000},
		Scoring: quiz.Scoring{Correct: 500, SpeedBonus: 500},
		Questions: []quiz.Question{
			{Text: "Capital of France?", Kind: quiz.Single, Answers: []string{"Paris", "Lyon"}, Correct: []int{0}},
			{Text: "Capital of Peru?", Kind: quiz.Single, Answers: []string{"Cusco", "Lima"}, Correct: []int{1}},
		},
	}
	return &MockQuizStore{
		quizzes: map[string]*quiz.Quiz{
			"capitals": capitals,
			"default":  capitals,
		},
		saved: make(map[string]*quiz.Quiz),
	}
}

func (m *MockQuizStore) LoadQuiz(id string) (*quiz.Quiz, error) {
	q, exists := m.quizzes[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", service.ErrQuizNotFound, id)
	}
	return q, nil
}

func (m *MockQuizStore) ListQuizzes() ([]*service.QuizInfo, error) {
	result := make([]*service.QuizInfo, 0, len(m.quizzes))
	for id, q := range m.quizzes {
		result = append(result, &service.QuizInfo{
			Filename:      id + ".json",
			QuizID:        id,
			Title:         q.Title,
			QuestionCount: len(q.Questions),
			PlayTime:      service.PlayTime(q),
		})
	}
	return result, nil
}

func (m *MockQuizStore) GetDefault() (string, *quiz.Quiz) {
	return "default", m.quizzes["default"]
}

func (m *MockQuizStore) SaveQuiz(id string, q *quiz.Quiz) error {
	if err := quiz.ValidateQuiz(q); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidQuiz, err)
	}
	m.saved[id] = q
	return nil
}

type nopPeer struct{}

func (nopPeer) Send(protocol.ServerMessage) error { return nil }

func newService(t *testing.T, opts service.Options) (service.GameService, *directory.Directory) {
	t.Helper()
	dir := directory.New()
	svc := service.NewGameService(dir, NewMockQuizStore(), opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})
	return svc, dir
}

func TestGameService_CreateGame(t *testing.T) {
	ctx := context.Background()
	svc, dir := newService(t, service.Options{MaxPlayers: 8})

	tests := []struct {
		name    string
		req     service.CreateGameRequest
		wantErr error
	}{
		{name: "default quiz", req: service.CreateGameRequest{}},
		{name: "specific quiz", req: service.CreateGameRequest{QuizID: "capitals"}},
		{name: "unknown quiz", req: service.CreateGameRequest{QuizID: "nonexistent"}, wantErr: service.ErrQuizNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.CreateGame(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, info.Token, directory.TokenLength)
			assert.Equal(t, "Capitals", info.Title)
			assert.Equal(t, 2, info.QuestionCount)
			assert.Equal(t, 8, info.MaxPlayers)
			assert.Equal(t, quiz.Lobby(), info.State)
			assert.Empty(t, info.Players)

			g, err := dir.Resolve(info.Token)
			require.NoError(t, err)
			assert.Equal(t, info.Token, g.Token())
		})
	}
}

func TestGameService_CreateGameOverrides(t *testing.T) {
	svc, _ := newService(t, service.Options{MaxPlayers: 8})

	info, err := svc.CreateGame(context.Background(), service.CreateGameRequest{
		QuizID:     "capitals",
		Timing:     &quiz.GameTiming{AnswerWindow: 2000},
		MaxPlayers: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, quiz.GameTiming{Countdown: 3000, AnswerWindow: 2000, Reveal: 5000}, info.Timing)
	assert.Equal(t, 3, info.MaxPlayers)

	// the stored quiz is untouched
	q, err := svc.LoadQuiz(context.Background(), "capitals")
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), q.Timing.AnswerWindow)
}

func TestGameService_GetAndListGames(t *testing.T) {
	ctx := context.Background()
	svc, dir := newService(t, service.Options{})

	first, err := svc.CreateGame(ctx, service.CreateGameRequest{QuizID: "capitals"})
	require.NoError(t, err)
	second, err := svc.CreateGame(ctx, service.CreateGameRequest{})
	require.NoError(t, err)

	g, err := dir.Resolve(first.Token)
	require.NoError(t, err)
	id, err := g.Admit(ctx, "alice", nopPeer{})
	require.NoError(t, err)

	info, err := svc.GetGame(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, "capitals", info.QuizID)
	assert.Equal(t, id, info.Host)
	require.Len(t, info.Players, 1)
	assert.Equal(t, "alice", info.Players[0].Name)
	assert.True(t, info.Players[0].Host)

	games, err := svc.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, first.Token, games[0].Token)
	assert.Equal(t, second.Token, games[1].Token)
	assert.Equal(t, "default", games[1].QuizID)

	_, err = svc.GetGame(ctx, "NOPE1")
	assert.ErrorIs(t, err, service.ErrGameNotFound)
}

func TestGameService_EndGame(t *testing.T) {
	ctx := context.Background()
	svc, dir := newService(t, service.Options{})

	info, err := svc.CreateGame(ctx, service.CreateGameRequest{})
	require.NoError(t, err)

	require.NoError(t, svc.EndGame(ctx, info.Token))

	_, err = dir.Resolve(info.Token)
	assert.ErrorIs(t, err, directory.ErrNotFound)
	assert.Equal(t, 0, dir.Count())

	err = svc.EndGame(ctx, info.Token)
	assert.ErrorIs(t, err, service.ErrGameNotFound)
}

func TestGameService_IdleGameIsUnregistered(t *testing.T) {
	svc, dir := newService(t, service.Options{IdleTimeout: 20 * time.Millisecond})

	info, err := svc.CreateGame(context.Background(), service.CreateGameRequest{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := dir.Resolve(info.Token)
		return errors.Is(err, directory.ErrNotFound) && dir.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGameService_Quizzes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, service.Options{})

	quizzes, err := svc.ListQuizzes(ctx)
	require.NoError(t, err)
	assert.Len(t, quizzes, 2)

	_, err = svc.LoadQuiz(ctx, "missing")
	require.ErrorIs(t, err, service.ErrQuizNotFound)
	assert.Contains(t, err.Error(), "Available quizzes")

	err = svc.SaveQuiz(ctx, "broken", &quiz.Quiz{Title: "Broken"})
	assert.ErrorIs(t, err, service.ErrInvalidQuiz)

	assert.Error(t, svc.SaveQuiz(ctx, "", &quiz.Quiz{}))
}

func TestGameService_Shutdown(t *testing.T) {
	ctx := context.Background()
	dir := directory.New()
	svc := service.NewGameService(dir, NewMockQuizStore(), service.Options{})

	var games []*engine.Game
	for i := 0; i < 3; i++ {
		info, err := svc.CreateGame(ctx, service.CreateGameRequest{})
		require.NoError(t, err)
		g, err := dir.Resolve(info.Token)
		require.NoError(t, err)
		games = append(games, g)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(shutdownCtx))

	for _, g := range games {
		select {
		case <-g.Done():
		default:
			t.Errorf("game %s still running after Shutdown", g.Token())
		}
	}
	assert.Equal(t, 0, dir.Count())

	_, err := svc.CreateGame(ctx, service.CreateGameRequest{})
	assert.Error(t, err)
}

func TestPlayTime(t *testing.T) {
	q := &quiz.Quiz{
		Timing:    quiz.GameTiming{Countdown: 3000, AnswerWindow: 10000, Reveal: 5000},
		Questions: make([]quiz.Question, 4),
	}
	assert.Equal(t, uint64(3000+4*15000), service.PlayTime(q))
}
