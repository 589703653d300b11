package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
)

// Result is one bot's outcome of a game.
type Result struct {
	Name     string
	ID       quiz.SessionID
	Score    uint32
	Correct  int
	Answered int
}

// Bot is one websocket player.
type Bot struct {
	name     string
	conn     *websocket.Conn
	strategy Strategy
	maxThink time.Duration
	rng      *rand.Rand
	logger   *zap.Logger

	id   quiz.SessionID
	host bool
}

// Dial opens a websocket connection for a new bot.
func Dial(ctx context.Context, wsURL, name string, strategy Strategy, maxThink time.Duration, rng *rand.Rand, logger *zap.Logger) (*Bot, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return &Bot{
		name:     name,
		conn:     conn,
		strategy: strategy,
		maxThink: maxThink,
		rng:      rng,
		logger:   logger.With(zap.String("bot", name)),
	}, nil
}

// Close closes the connection, which the server treats as leaving.
func (b *Bot) Close() error {
	return b.conn.Close()
}

func (b *Bot) send(msg protocol.ClientMessage) error {
	frame, err := protocol.EncodeClient(msg)
	if err != nil {
		return err
	}
	b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return b.conn.WriteMessage(websocket.TextMessage, frame)
}

func (b *Bot) read() (protocol.ServerMessage, error) {
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeServerMessage(data)
}

// Join sends TryConnect and waits for the verdict.
func (b *Bot) Join(token string) error {
	if err := b.send(protocol.TryConnect{Token: token, Username: b.name}); err != nil {
		return fmt.Errorf("send TryConnect: %w", err)
	}

	b.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer b.conn.SetReadDeadline(time.Time{})
	for {
		msg, err := b.read()
		if err != nil {
			return fmt.Errorf("waiting for admission: %w", err)
		}
		switch m := msg.(type) {
		case protocol.Connected:
			b.id = m.ID
			b.logger.Debug("joined", zap.Uint32("session", uint32(m.ID)), zap.String("quiz", m.Basic.Title))
			return nil
		case *protocol.Error:
			return m
		}
	}
}

type frame struct {
	msg protocol.ServerMessage
	err error
}

// Play answers questions until the game finishes. Once start is closed the
// host sends Start; a bot that becomes host later while still in the lobby
// sends it then.
func (b *Bot) Play(ctx context.Context, start <-chan struct{}) (Result, error) {
	result := Result{Name: b.name, ID: b.id}

	done := make(chan struct{})
	defer close(done)

	frames := make(chan frame)
	go func() {
		for {
			msg, err := b.read()
			select {
			case frames <- frame{msg, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	if err := b.send(protocol.Ready{}); err != nil {
		return result, fmt.Errorf("send Ready: %w", err)
	}

	var (
		answerC   <-chan time.Time
		pending   quiz.QuestionAnswer
		wantStart bool
		finished  bool
	)
	maybeStart := func() error {
		if !wantStart || !b.host {
			return nil
		}
		wantStart = false
		b.logger.Info("starting game")
		return b.send(protocol.Start{})
	}

	for {
		select {
		case <-ctx.Done():
			b.conn.Close()
			return result, ctx.Err()

		case <-start:
			start = nil
			wantStart = true
			if err := maybeStart(); err != nil {
				return result, fmt.Errorf("send Start: %w", err)
			}

		case <-answerC:
			answerC = nil
			if err := b.send(protocol.Answer{Answer: pending}); err != nil {
				return result, fmt.Errorf("send Answer: %w", err)
			}
			result.Answered++

		case f := <-frames:
			if f.err != nil {
				if finished {
					return result, nil
				}
				return result, fmt.Errorf("read: %w", f.err)
			}

			switch m := f.msg.(type) {
			case protocol.HostChanged:
				b.host = m.ID == b.id
				if err := maybeStart(); err != nil {
					return result, fmt.Errorf("send Start: %w", err)
				}

			case protocol.Question:
				pending = quiz.QuestionAnswer{Index: m.Index, Choices: b.strategy.Choose(m)}
				answerC = time.After(b.think())

			case protocol.AnswerResult:
				answerC = nil
				if m.Result.Correct {
					result.Correct++
				}
				result.Score = m.Result.Total

			case protocol.ScoreUpdate:
				result.Score = m.Scores[b.id]
				if finished {
					return result, nil
				}

			case protocol.GameState:
				if !m.State.Is(quiz.PhaseLobby) {
					wantStart = false
				}
				if m.State.Is(quiz.PhaseFinished) {
					finished = true
				}

			case *protocol.Error:
				b.logger.Warn("server error", zap.String("code", string(m.Code)), zap.String("message", m.Message))
			}
		}
	}
}

func (b *Bot) think() time.Duration {
	if b.maxThink <= 0 {
		return 0
	}
	return time.Duration(b.rng.Int64N(int64(b.maxThink)))
}
