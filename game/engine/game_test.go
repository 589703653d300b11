package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
)

const waitTimeout = 2 * time.Second

// recorder is a Peer that buffers every message it is sent.
type recorder struct {
	msgs chan protocol.ServerMessage
	fail atomic.Bool
}

func newRecorder() *recorder {
	return &recorder{msgs: make(chan protocol.ServerMessage, 1024)}
}

func (r *recorder) Send(msg protocol.ServerMessage) error {
	if r.fail.Load() {
		return errors.New("connection closed")
	}
	select {
	case r.msgs <- msg:
		return nil
	default:
		return errors.New("buffer full")
	}
}

func (r *recorder) next(t *testing.T) protocol.ServerMessage {
	t.Helper()
	select {
	case msg := <-r.msgs:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

// expectNone asserts nothing arrives within d.
func (r *recorder) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case msg := <-r.msgs:
		t.Fatalf("unexpected message %T %+v", msg, msg)
	case <-time.After(d):
	}
}

// waitFor skips messages until one of type T arrives.
func waitFor[T protocol.ServerMessage](t *testing.T, r *recorder) T {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case msg := <-r.msgs:
			if m, ok := msg.(T); ok {
				return m
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// drain discards everything currently buffered.
func (r *recorder) drain() {
	for {
		select {
		case <-r.msgs:
		default:
			return
		}
	}
}

func testQuiz(questions int) *quiz.Quiz {
	q := &quiz.Quiz{
		Title:   "Test",
		Timing:  quiz.GameTiming{Countdown: 30, AnswerWindow: 200, Reveal: 30},
		Scoring: quiz.Scoring{Correct: 500, SpeedBonus: 500},
	}
	for i := 0; i < questions; i++ {
		q.Questions = append(q.Questions, quiz.Question{
			Text:    fmt.Sprintf("Question %d?", i),
			Kind:    quiz.Single,
			Answers: []string{"right", "wrong"},
			Correct: []int{0},
		})
	}
	return q
}

func startGame(t *testing.T, opts Options) *Game {
	t.Helper()
	if opts.Token == "" {
		opts.Token = "T1"
	}
	if opts.Quiz == nil {
		opts.Quiz = testQuiz(2)
	}
	if opts.SyncInterval == 0 {
		opts.SyncInterval = time.Hour
	}
	g, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-g.Done()
	})
	return g
}

func admit(t *testing.T, g *Game, name string) (quiz.SessionID, *recorder) {
	t.Helper()
	r := newRecorder()
	id, err := g.Admit(context.Background(), name, r)
	require.NoError(t, err)
	return id, r
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Quiz: testQuiz(1)})
	assert.Error(t, err)

	_, err = New(Options{Token: "T1"})
	assert.Error(t, err)

	_, err = New(Options{Token: "T1", Quiz: &quiz.Quiz{Title: "empty"}})
	assert.Error(t, err)

	g, err := New(Options{Token: "T1", Quiz: testQuiz(3), MaxPlayers: 4})
	require.NoError(t, err)
	assert.Equal(t, "T1", g.Token())
	assert.Equal(t, 3, g.Basic().QuestionCount)
	assert.Equal(t, 4, g.Basic().MaxPlayers)
}

func TestAdmitSendsConnectedAndRoster(t *testing.T) {
	g := startGame(t, Options{})

	aliceID, alice := admit(t, g, "alice")
	connected, ok := alice.next(t).(protocol.Connected)
	require.True(t, ok)
	assert.Equal(t, aliceID, connected.ID)
	assert.Equal(t, "T1", connected.Token)
	assert.Equal(t, g.Basic(), connected.Basic)
	assert.Equal(t, protocol.HostChanged{ID: aliceID}, alice.next(t))
	assert.Equal(t, protocol.GameState{State: quiz.Lobby()}, alice.next(t))

	bobID, bob := admit(t, g, "bob")
	require.IsType(t, protocol.Connected{}, bob.next(t))
	assert.Equal(t, protocol.OtherPlayer{ID: aliceID, Name: "alice"}, bob.next(t))
	assert.Equal(t, protocol.HostChanged{ID: aliceID}, bob.next(t))
	assert.Equal(t, protocol.GameState{State: quiz.Lobby()}, bob.next(t))

	// existing participants hear about the newcomer, the newcomer does not
	assert.Equal(t, protocol.OtherPlayer{ID: bobID, Name: "bob"}, alice.next(t))
	bob.expectNone(t, 50*time.Millisecond)
}

func TestAdmitRejections(t *testing.T) {
	g := startGame(t, Options{MaxPlayers: 2})
	admit(t, g, "alice")

	tests := []struct {
		name     string
		username string
		want     *protocol.Error
	}{
		{"empty", "   ", protocol.ErrInvalidUsername},
		{"too long", "abcdefghijklmnopqrstuvwxyz0123456789", protocol.ErrInvalidUsername},
		{"duplicate ignoring case", " ALICE ", protocol.ErrUsernameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Admit(context.Background(), tt.username, newRecorder())
			assert.ErrorIs(t, err, tt.want)
		})
	}

	admit(t, g, "bob")
	_, err := g.Admit(context.Background(), "carol", newRecorder())
	assert.ErrorIs(t, err, protocol.ErrGameFull)
}

func TestAdmitOutsideLobbyIsRejectedSilently(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(1), 10000, 10000, 10000)})
	hostID, host := admit(t, g, "alice")
	g.Start(hostID)
	for {
		if state := waitFor[protocol.GameState](t, host); state.State.Is(quiz.PhaseStarting) {
			break
		}
	}
	host.drain()

	late := newRecorder()
	_, err := g.Admit(context.Background(), "bob", late)
	assert.ErrorIs(t, err, protocol.ErrNotInLobby)

	host.expectNone(t, 50*time.Millisecond)
	late.expectNone(t, 10*time.Millisecond)
}

func TestSessionIDsStrictlyIncrease(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g, err := New(Options{Token: "T1", Quiz: testQuiz(1), SyncInterval: time.Hour})
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer func() {
			cancel()
			<-g.Done()
		}()
		go g.Run(ctx)

		// keep one participant so departures never empty the game
		last, err := g.Admit(ctx, "anchor", newRecorder())
		if err != nil {
			t.Fatal(err)
		}
		var joined []quiz.SessionID

		ops := rapid.SliceOfN(rapid.Bool(), 1, 30).Draw(t, "ops")
		for i, join := range ops {
			if join || len(joined) == 0 {
				id, err := g.Admit(ctx, fmt.Sprintf("p%d", i), newRecorder())
				if err != nil {
					t.Fatal(err)
				}
				if id <= last {
					t.Fatalf("id %d not greater than previous %d", id, last)
				}
				last = id
				joined = append(joined, id)
				continue
			}
			k := rapid.IntRange(0, len(joined)-1).Draw(t, "victim")
			g.Depart(joined[k])
			joined = append(joined[:k], joined[k+1:]...)
		}
	})
}

func withTiming(q *quiz.Quiz, countdown, window, reveal uint64) *quiz.Quiz {
	q.Timing = quiz.GameTiming{Countdown: countdown, AnswerWindow: window, Reveal: reveal}
	return q
}

func statesUntilFinished(t *testing.T, r *recorder) []string {
	t.Helper()
	var states []string
	for {
		s := waitFor[protocol.GameState](t, r)
		states = append(states, s.State.String())
		if s.State.Is(quiz.PhaseFinished) {
			return states
		}
	}
}

func TestPhaseSequence(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(2), 30, 60, 30)})
	hostID, host := admit(t, g, "alice")
	_, bob := admit(t, g, "bob")
	host.drain()
	bob.drain()

	g.Start(hostID)

	want := []string{"Starting", "Question(0)", "Reveal(0)", "Question(1)", "Reveal(1)", "Finished"}
	assert.Equal(t, want, statesUntilFinished(t, host))
	assert.Equal(t, want, statesUntilFinished(t, bob))
}

func TestQuestionBroadcastOrder(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(1), 10, 10000, 10000)})
	hostID, host := admit(t, g, "alice")
	host.drain()

	g.Start(hostID)
	assert.Equal(t, protocol.GameState{State: quiz.Starting()}, host.next(t))

	state, ok := host.next(t).(protocol.GameState)
	require.True(t, ok)
	assert.Equal(t, quiz.PhaseQuestion, state.State.Phase)
	assert.Greater(t, state.State.Deadline, time.Now().UnixMilli())

	assert.Equal(t, protocol.BeginQuestion{}, host.next(t))
	question, ok := host.next(t).(protocol.Question)
	require.True(t, ok)
	assert.Equal(t, 0, question.Index)
	assert.Equal(t, 1, question.Count)
	assert.Equal(t, []string{"right", "wrong"}, question.Answers)
	assert.Equal(t, uint64(10000), question.Duration)
}

func TestEarlyRevealWhenEveryoneAnswered(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(1), 10, 10000, 10000)})
	hostID, host := admit(t, g, "alice")
	bobID, bob := admit(t, g, "bob")

	g.Start(hostID)
	waitFor[protocol.Question](t, host)
	waitFor[protocol.Question](t, bob)

	began := time.Now()
	g.Answer(hostID, quiz.QuestionAnswer{Index: 0, Choices: []int{0}})
	g.Answer(bobID, quiz.QuestionAnswer{Index: 0, Choices: []int{1}})

	state := waitFor[protocol.GameState](t, host)
	assert.Equal(t, quiz.Reveal(0), state.State)
	assert.Less(t, time.Since(began), time.Second)

	result := waitFor[protocol.AnswerResult](t, host)
	assert.True(t, result.Result.Correct)
	assert.Greater(t, result.Result.Score, uint32(500))
	assert.Equal(t, result.Result.Score, result.Result.Total)

	bobResult := waitFor[protocol.AnswerResult](t, bob)
	assert.False(t, bobResult.Result.Correct)
	assert.Zero(t, bobResult.Result.Score)

	scores := waitFor[protocol.ScoreUpdate](t, bob)
	assert.Equal(t, map[quiz.SessionID]uint32{hostID: result.Result.Total, bobID: 0}, scores.Scores)
}

// stallCmd occupies the coordinator to simulate an inbox backlog.
type stallCmd struct{ d time.Duration }

func (c stallCmd) apply(*Game) { time.Sleep(c.d) }

func TestSpeedBonusMeasuredAtSubmission(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(1), 10, 1000, 10000)})
	hostID, host := admit(t, g, "alice")

	g.Start(hostID)
	waitFor[protocol.Question](t, host)

	g.post(stallCmd{d: 300 * time.Millisecond})
	g.Answer(hostID, quiz.QuestionAnswer{Index: 0, Choices: []int{0}})

	result := waitFor[protocol.AnswerResult](t, host)
	require.True(t, result.Result.Correct)
	// A backlog of 300ms would cap the bonus at 350 if it counted.
	assert.Greater(t, result.Result.Score, uint32(500+400))
}

func TestDuplicateAnswerScoredOnce(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(1), 10, 150, 10000)})
	hostID, host := admit(t, g, "alice")
	admit(t, g, "bob") // never answers, so the window runs out

	g.Start(hostID)
	waitFor[protocol.Question](t, host)

	g.Answer(hostID, quiz.QuestionAnswer{Index: 0, Choices: []int{1}})
	g.Answer(hostID, quiz.QuestionAnswer{Index: 0, Choices: []int{0}})
	g.Answer(hostID, quiz.QuestionAnswer{Index: 0, Choices: []int{0}})

	result := waitFor[protocol.AnswerResult](t, host)
	assert.False(t, result.Result.Correct)
	assert.Zero(t, result.Result.Total)

	scores := waitFor[protocol.ScoreUpdate](t, host)
	assert.Zero(t, scores.Scores[hostID])
}

func TestStaleIndexAnswerIgnored(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(2), 10, 150, 10000)})
	hostID, host := admit(t, g, "alice")

	g.Start(hostID)
	waitFor[protocol.Question](t, host)
	g.Answer(hostID, quiz.QuestionAnswer{Index: 1, Choices: []int{0}})

	// the window expires without counting the answer
	result := waitFor[protocol.AnswerResult](t, host)
	assert.Equal(t, 0, result.Result.Index)
	assert.False(t, result.Result.Correct)
}

func TestNonHostCannotStartOrCancel(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(1), 10000, 10000, 10000)})
	hostID, host := admit(t, g, "alice")
	bobID, bob := admit(t, g, "bob")
	host.drain()
	bob.drain()

	g.Start(bobID)
	assert.Equal(t, protocol.ErrNotHost.Code, waitFor[*protocol.Error](t, bob).Code)
	host.expectNone(t, 50*time.Millisecond)

	snap, err := g.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, quiz.Lobby(), snap.State)

	g.Start(hostID)
	waitFor[protocol.GameState](t, bob)
	g.Cancel(bobID)
	assert.Equal(t, protocol.ErrNotHost.Code, waitFor[*protocol.Error](t, bob).Code)

	snap, err = g.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, quiz.Starting(), snap.State)
}

func TestCancelReturnsToLobby(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(1), 100, 10000, 10000)})
	hostID, host := admit(t, g, "alice")
	host.drain()

	g.Cancel(hostID)
	assert.Equal(t, protocol.ErrNotYourTurn.Code, waitFor[*protocol.Error](t, host).Code)

	g.Start(hostID)
	assert.Equal(t, protocol.GameState{State: quiz.Starting()}, host.next(t))
	g.Cancel(hostID)
	assert.Equal(t, protocol.GameState{State: quiz.Lobby()}, host.next(t))

	// the countdown timer is stale now
	host.expectNone(t, 200*time.Millisecond)

	g.Start(hostID)
	assert.Equal(t, protocol.GameState{State: quiz.Starting()}, host.next(t))
	g.Start(hostID)
	assert.Equal(t, protocol.ErrNotInLobby.Code, waitFor[*protocol.Error](t, host).Code)
}

func TestHostHandoff(t *testing.T) {
	g := startGame(t, Options{})
	hostID, _ := admit(t, g, "alice")
	bobID, bob := admit(t, g, "bob")
	carolID, carol := admit(t, g, "carol")
	bob.drain()
	carol.drain()

	g.Depart(hostID)
	assert.Equal(t, protocol.PlayerLeft{ID: hostID}, bob.next(t))
	assert.Equal(t, protocol.HostChanged{ID: bobID}, bob.next(t))
	assert.Equal(t, protocol.PlayerLeft{ID: hostID}, carol.next(t))
	assert.Equal(t, protocol.HostChanged{ID: bobID}, carol.next(t))

	snap, err := g.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bobID, snap.Host)
	require.Len(t, snap.Players, 2)
	assert.Equal(t, carolID, snap.Players[1].ID)

	g.Start(bobID)
	assert.Equal(t, protocol.GameState{State: quiz.Starting()}, carol.next(t))
}

func TestLastDepartureClosesGame(t *testing.T) {
	var closed atomic.Int32
	g := startGame(t, Options{OnClose: func(*Game) { closed.Add(1) }})
	aliceID, _ := admit(t, g, "alice")
	bobID, _ := admit(t, g, "bob")

	g.Depart(aliceID)
	g.Depart(aliceID)
	select {
	case <-g.Done():
		t.Fatal("game closed with a participant left")
	case <-time.After(50 * time.Millisecond):
	}

	g.Depart(bobID)
	select {
	case <-g.Done():
	case <-time.After(waitTimeout):
		t.Fatal("game did not close")
	}
	assert.Equal(t, int32(1), closed.Load())

	_, err := g.Admit(context.Background(), "carol", newRecorder())
	assert.ErrorIs(t, err, ErrGameClosed)
	_, err = g.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrGameClosed)
}

func TestUnreachablePeerIsDeparted(t *testing.T) {
	g := startGame(t, Options{})
	_, alice := admit(t, g, "alice")
	bobID, bob := admit(t, g, "bob")
	alice.drain()

	bob.fail.Store(true)
	admit(t, g, "carol") // the OtherPlayer broadcast to bob fails

	assert.Equal(t, protocol.OtherPlayer{ID: 3, Name: "carol"}, alice.next(t))
	assert.Equal(t, protocol.PlayerLeft{ID: bobID}, alice.next(t))

	snap, err := g.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)
}

func TestDepartDuringQuestionRevealsWhenRestAnswered(t *testing.T) {
	g := startGame(t, Options{Quiz: withTiming(testQuiz(1), 10, 10000, 10000)})
	hostID, host := admit(t, g, "alice")
	bobID, _ := admit(t, g, "bob")

	g.Start(hostID)
	waitFor[protocol.Question](t, host)
	g.Answer(hostID, quiz.QuestionAnswer{Index: 0, Choices: []int{0}})
	g.Depart(bobID)

	assert.Equal(t, quiz.Reveal(0), waitFor[protocol.GameState](t, host).State)
}

func TestTimeSyncDuringQuestion(t *testing.T) {
	g := startGame(t, Options{
		Quiz:         withTiming(testQuiz(1), 10, 10000, 10000),
		SyncInterval: 20 * time.Millisecond,
	})
	hostID, host := admit(t, g, "alice")

	g.Start(hostID)
	waitFor[protocol.Question](t, host)

	ts := waitFor[protocol.TimeSync](t, host)
	assert.Equal(t, uint64(10000), ts.Total)
	assert.LessOrEqual(t, ts.Elapsed, ts.Total)
}

func TestFinishGraceTearsDown(t *testing.T) {
	g := startGame(t, Options{
		Quiz:        withTiming(testQuiz(1), 10, 10000, 10),
		FinishGrace: 30 * time.Millisecond,
	})
	hostID, host := admit(t, g, "alice")

	g.Start(hostID)
	waitFor[protocol.Question](t, host)
	g.Answer(hostID, quiz.QuestionAnswer{Index: 0, Choices: []int{0}})

	assert.Equal(t, []string{"Reveal(0)", "Finished"}, statesUntilFinished(t, host))
	final := waitFor[protocol.ScoreUpdate](t, host)
	assert.Greater(t, final.Scores[hostID], uint32(0))

	select {
	case <-g.Done():
	case <-time.After(waitTimeout):
		t.Fatal("game did not tear down after grace period")
	}
}

func TestIdleGameTearsDown(t *testing.T) {
	g := startGame(t, Options{IdleTimeout: 20 * time.Millisecond})
	select {
	case <-g.Done():
	case <-time.After(waitTimeout):
		t.Fatal("idle game was not torn down")
	}
}

func TestAdmissionCancelsIdleTimer(t *testing.T) {
	g := startGame(t, Options{IdleTimeout: 30 * time.Millisecond})
	admit(t, g, "alice")
	select {
	case <-g.Done():
		t.Fatal("game with a participant was torn down as idle")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseBroadcastsFinalState(t *testing.T) {
	g := startGame(t, Options{})
	_, alice := admit(t, g, "alice")
	alice.drain()

	g.Close()
	assert.Equal(t, protocol.GameState{State: quiz.Finished()}, alice.next(t))
	require.IsType(t, protocol.ScoreUpdate{}, alice.next(t))
	<-g.Done()
}

func TestAdmitHonoursContext(t *testing.T) {
	g, err := New(Options{Token: "T1", Quiz: testQuiz(1)})
	require.NoError(t, err)

	// Run is never started, so the reply never comes.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Admit(ctx, "alice", newRecorder())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentAdmissionsGetUniqueIDs(t *testing.T) {
	g := startGame(t, Options{})

	var (
		mu  sync.Mutex
		ids = make(map[quiz.SessionID]bool)
		wg  sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := g.Admit(context.Background(), fmt.Sprintf("p%d", i), newRecorder())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Len(t, ids, 20)
}
