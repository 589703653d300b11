package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wricardo/quizler/api"
	"github.com/wricardo/quizler/game/config"
	"github.com/wricardo/quizler/game/directory"
	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
	"github.com/wricardo/quizler/game/service"
	"github.com/wricardo/quizler/transport/websocket"
)

const miniQuiz = `title: Mini
timing:
  countdown: 20
  answer_window: 400
  reveal: 20
questions:
  - text: "2 + 2?"
    kind: Single
    answers: ["3", "4"]
    correct: [1]
  - text: "Which are prime?"
    kind: Multiple
    answers: ["2", "3", "4"]
    correct: [0, 1]
`

func startServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mini.yaml"), []byte(miniQuiz), 0o644))

	logger := zap.NewNop()
	quizzes, err := config.NewManager(dir, logger)
	require.NoError(t, err)

	games := directory.New()
	svc := service.NewGameService(games, quizzes, service.Options{Logger: logger})
	hub := websocket.NewHub(games, websocket.Options{Logger: logger})
	hubCtx, cancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	srv := httptest.NewServer(api.NewServer(svc, hub, logger))
	t.Cleanup(func() {
		srv.Close()
		ctx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		svc.Shutdown(ctx)
		cancel()
	})
	return srv.URL
}

func TestRandomStrategy(t *testing.T) {
	s := NewRandomStrategy(rand.New(rand.NewPCG(1, 2)))

	for i := 0; i < 100; i++ {
		single := s.Choose(protocol.Question{Kind: quiz.Single, Answers: []string{"a", "b", "c"}})
		require.Len(t, single, 1)
		assert.True(t, single[0] >= 0 && single[0] < 3)

		multi := s.Choose(protocol.Question{Kind: quiz.Multiple, Answers: []string{"a", "b", "c", "d"}})
		require.NotEmpty(t, multi)
		seen := map[int]bool{}
		for _, c := range multi {
			assert.True(t, c >= 0 && c < 4)
			assert.False(t, seen[c], "duplicate choice %d", c)
			seen[c] = true
		}
	}

	assert.Nil(t, s.Choose(protocol.Question{Kind: quiz.Single}))
}

func TestOracleStrategy(t *testing.T) {
	key := &quiz.Quiz{Questions: []quiz.Question{
		{Kind: quiz.Single, Answers: []string{"a", "b"}, Correct: []int{1}},
		{Kind: quiz.Multiple, Answers: []string{"a", "b", "c"}, Correct: []int{0, 2}},
	}}
	s := NewOracleStrategy(key, 1, rand.New(rand.NewPCG(3, 4)))

	assert.Equal(t, []int{1}, s.Choose(protocol.Question{Index: 0, Kind: quiz.Single, Answers: []string{"a", "b"}}))
	got := s.Choose(protocol.Question{Index: 1, Kind: quiz.Multiple, Answers: []string{"a", "b", "c"}})
	assert.Equal(t, []int{0, 2}, got)

	// The key must not be aliased.
	got[0] = 9
	assert.Equal(t, []int{0, 2}, key.Questions[1].Correct)

	// Unknown questions fall back to guessing.
	guess := s.Choose(protocol.Question{Index: 5, Kind: quiz.Single, Answers: []string{"a", "b"}})
	require.Len(t, guess, 1)

	never := NewOracleStrategy(key, 0, rand.New(rand.NewPCG(5, 6)))
	for i := 0; i < 20; i++ {
		c := never.Choose(protocol.Question{Index: 0, Kind: quiz.Single, Answers: []string{"a", "b"}})
		require.Len(t, c, 1)
	}
}

func TestClient_WebSocketURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{base: "https://quiz.example.com/", want: "wss://quiz.example.com/ws"},
		{base: "http://host/prefix", want: "ws://host/prefix/ws"},
		{base: "ftp://host", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := NewClient(tt.base).WebSocketURL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLeaderboard(t *testing.T) {
	results := []Result{
		{Name: "bot-2", Score: 500},
		{Name: "bot-3", Score: 900},
		{Name: "bot-1", Score: 500},
	}
	board := Leaderboard(results)

	assert.Equal(t, []string{"bot-3", "bot-1", "bot-2"}, []string{board[0].Name, board[1].Name, board[2].Name})
	assert.Equal(t, "bot-2", results[0].Name, "input must not be reordered")
}

func TestRun_PlaysFullGame(t *testing.T) {
	url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token, results, err := Run(ctx, Options{
		ServerURL: url,
		QuizID:    "mini",
		Bots:      3,
		Prefix:    "bot",
		Accuracy:  1,
		Seed:      7,
	})
	require.NoError(t, err)
	assert.Len(t, token, 5)
	require.Len(t, results, 3)

	for _, r := range results {
		assert.Equal(t, 2, r.Answered, r.Name)
		assert.Equal(t, 2, r.Correct, r.Name)
		assert.GreaterOrEqual(t, r.Score, uint32(2*quiz.DefaultCorrect), r.Name)
	}
}

func TestRun_Errors(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	_, _, err := Run(ctx, Options{ServerURL: url})
	assert.Error(t, err)

	_, _, err = Run(ctx, Options{ServerURL: url, QuizID: "missing", Bots: 1, Prefix: "bot"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, _, err = Run(ctx, Options{ServerURL: url, Token: "ZZZZZ", Bots: 1, Prefix: "bot"})
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrUnknownToken)
}

func TestApp(t *testing.T) {
	url := startServer(t)
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := newApp(&out).Run(ctx, []string{
		"quizbots", "--url", url, "--quiz", "mini", "-n", "2", "--think", "0s", "--seed", "3",
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Game ")
	assert.Contains(t, out.String(), "RANK")
	assert.Contains(t, out.String(), "bot-1")
	assert.Contains(t, out.String(), "bot-2")
}
