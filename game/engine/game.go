package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
)

const (
	inboxSize = 256

	defaultSyncInterval = time.Second
	defaultFinishGrace  = 10 * time.Second
)

// ErrGameClosed is returned by requests made to a game that has torn down.
var ErrGameClosed = errors.New("game closed")

// Peer is the coordinator's handle on one participant's connection.
// Send must not block; an error means the participant is unreachable.
type Peer interface {
	Send(msg protocol.ServerMessage) error
}

// Options configures a new Game.
type Options struct {
	Token string
	Quiz  *quiz.Quiz

	// MaxPlayers overrides the quiz limit when positive. Zero keeps the
	// quiz value, which may itself be zero for unlimited.
	MaxPlayers int

	SyncInterval time.Duration
	FinishGrace  time.Duration
	// IdleTimeout tears the game down if nobody joins in time. Zero disables.
	IdleTimeout time.Duration

	Logger *zap.Logger

	// OnClose runs on the game goroutine after the last participant is
	// gone and before Done is closed.
	OnClose func(g *Game)
}

// Game is the coordinator of one quiz game. All state is owned by the
// goroutine running Run; every other method only posts to its inbox.
type Game struct {
	token     string
	quiz      *quiz.Quiz
	basic     quiz.BasicConfig
	timing    quiz.GameTiming
	createdAt time.Time

	syncInterval time.Duration
	finishGrace  time.Duration
	idleTimeout  time.Duration
	onClose      func(*Game)
	logger       *zap.Logger

	inbox     chan command
	quit      chan struct{}
	quitOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the Run goroutine.
	state      quiz.GameState
	players    map[quiz.SessionID]*participant
	order      []quiz.SessionID
	host       quiz.SessionID
	nextID     quiz.SessionID
	phaseStart time.Time
	phaseTotal time.Duration
	timer      *time.Timer
	timerGen   uint64
	ticker     *time.Ticker
	drops      []quiz.SessionID
	stopped    bool
}

// New validates the quiz and builds a game in the Lobby phase. The game does
// nothing until Run is called.
func New(opts Options) (*Game, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if opts.Quiz == nil {
		return nil, fmt.Errorf("quiz is required")
	}
	q := opts.Quiz.Clone()
	q.ApplyDefaults()
	if err := quiz.ValidateQuiz(q); err != nil {
		return nil, fmt.Errorf("invalid quiz: %w", err)
	}
	if opts.MaxPlayers > 0 {
		q.MaxPlayers = opts.MaxPlayers
	}

	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	if opts.FinishGrace <= 0 {
		opts.FinishGrace = defaultFinishGrace
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Game{
		token:        opts.Token,
		quiz:         q,
		basic:        q.Basic(),
		timing:       q.Timing,
		createdAt:    time.Now(),
		syncInterval: opts.SyncInterval,
		finishGrace:  opts.FinishGrace,
		idleTimeout:  opts.IdleTimeout,
		onClose:      opts.OnClose,
		logger:       logger.With(zap.String("token", opts.Token)),
		inbox:        make(chan command, inboxSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		state:        quiz.Lobby(),
		players:      make(map[quiz.SessionID]*participant),
		nextID:       1,
	}, nil
}

// Token returns the join token of the game.
func (g *Game) Token() string { return g.token }

// Basic returns the immutable metadata of the game.
func (g *Game) Basic() quiz.BasicConfig { return g.basic }

// Timing returns the phase durations of the game.
func (g *Game) Timing() quiz.GameTiming { return g.timing }

// Done is closed once the game has torn down.
func (g *Game) Done() <-chan struct{} { return g.done }

// Close asks the game to finish and tear down. It does not wait.
func (g *Game) Close() {
	g.quitOnce.Do(func() { close(g.quit) })
}

// Run processes the inbox until the game tears down or ctx is cancelled.
func (g *Game) Run(ctx context.Context) {
	defer g.teardown()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("coordinator panic, tearing down game",
				zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	g.logger.Info("game started", zap.String("title", g.basic.Title))
	if g.idleTimeout > 0 {
		g.armTimer(g.idleTimeout)
	}

	for !g.stopped {
		select {
		case <-ctx.Done():
			g.end("context cancelled")
		case <-g.quit:
			g.end("closed")
		case cmd := <-g.inbox:
			cmd.apply(g)
		case <-g.syncC():
			g.syncTick()
		}
		g.flushDrops()
	}
}

// Admit asks the game to add a participant. On success the peer has already
// been sent Connected and the roster.
func (g *Game) Admit(ctx context.Context, username string, peer Peer) (quiz.SessionID, error) {
	reply := make(chan admitReply, 1)
	select {
	case g.inbox <- admitCmd{name: username, peer: peer, reply: reply}:
	case <-g.done:
		return 0, ErrGameClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.id, r.err
	case <-g.done:
		return 0, ErrGameClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Ready records that a participant is ready. It has no effect on the phase.
func (g *Game) Ready(id quiz.SessionID) { g.post(readyCmd{id: id}) }

// Start begins the countdown. Only the host may start, and only from Lobby.
func (g *Game) Start(id quiz.SessionID) { g.post(startCmd{id: id}) }

// Cancel aborts the countdown. Only the host may cancel.
func (g *Game) Cancel(id quiz.SessionID) { g.post(cancelCmd{id: id}) }

// Answer submits a participant's answer for the open question. The speed
// bonus is measured from the moment Answer is called, not when the inbox
// gets to it.
func (g *Game) Answer(id quiz.SessionID, answer quiz.QuestionAnswer) {
	at := time.Now()
	answer.Choices = append([]int(nil), answer.Choices...)
	g.post(answerCmd{id: id, answer: answer, at: at})
}

// Depart removes a participant. Unknown ids are ignored.
func (g *Game) Depart(id quiz.SessionID) { g.post(departCmd{id: id}) }

// Snapshot returns a copy of the current game state.
func (g *Game) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case g.inbox <- snapshotCmd{reply: reply}:
	case <-g.done:
		return Snapshot{}, ErrGameClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-g.done:
		return Snapshot{}, ErrGameClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (g *Game) post(cmd command) bool {
	select {
	case g.inbox <- cmd:
		return true
	case <-g.done:
		return false
	}
}

func (g *Game) teardown() {
	g.closeOnce.Do(func() {
		g.stopTimer()
		g.stopSync()
		g.stopped = true
		if g.onClose != nil {
			g.onClose(g)
		}
		close(g.done)
		g.logger.Info("game torn down", zap.Stringer("state", g.state))
	})
}

// end finishes the game early, showing final scores to whoever is left.
func (g *Game) end(reason string) {
	g.logger.Info("ending game", zap.String("reason", reason))
	if !g.state.Is(quiz.PhaseFinished) && len(g.players) > 0 {
		g.state = quiz.Finished()
		g.broadcast(protocol.GameState{State: g.state})
		g.broadcast(g.scoreUpdate())
	}
	g.stopped = true
}
