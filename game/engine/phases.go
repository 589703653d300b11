package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
)

func (g *Game) start(id quiz.SessionID) {
	if _, ok := g.players[id]; !ok {
		return
	}
	if id != g.host {
		g.reject(id, protocol.NewError(protocol.CodeNotHost, "only the host can start the game"))
		return
	}
	if !g.state.Is(quiz.PhaseLobby) {
		g.reject(id, protocol.NewError(protocol.CodeNotInLobby, "game is already %s", g.state))
		return
	}

	g.setState(quiz.Starting())
	g.broadcast(protocol.GameState{State: g.state})
	g.beginPhase(g.timing.CountdownDuration())
}

func (g *Game) cancel(id quiz.SessionID) {
	if _, ok := g.players[id]; !ok {
		return
	}
	if id != g.host {
		g.reject(id, protocol.NewError(protocol.CodeNotHost, "only the host can cancel the countdown"))
		return
	}
	if !g.state.Is(quiz.PhaseStarting) {
		g.reject(id, protocol.NewError(protocol.CodeNotYourTurn, "nothing to cancel while %s", g.state))
		return
	}

	g.stopTimer()
	g.stopSync()
	g.setState(quiz.Lobby())
	g.broadcast(protocol.GameState{State: g.state})
}

func (g *Game) answer(id quiz.SessionID, a quiz.QuestionAnswer, at time.Time) {
	p, ok := g.players[id]
	if !ok || !g.state.Is(quiz.PhaseQuestion) || a.Index != g.state.Index {
		return
	}
	if p.answer != nil {
		// only the first submission counts
		return
	}
	p.answer = &submission{choices: a.Choices, elapsed: at.Sub(g.phaseStart)}

	if g.allAnswered() {
		g.logger.Debug("all participants answered", zap.Int("index", g.state.Index))
		g.reveal()
	}
}

// expire handles the phase timer firing.
func (g *Game) expire() {
	switch g.state.Phase {
	case quiz.PhaseLobby:
		if len(g.players) == 0 {
			g.logger.Info("nobody joined, closing idle game")
			g.stopped = true
		}
	case quiz.PhaseStarting:
		g.openQuestion(0)
	case quiz.PhaseQuestion:
		g.reveal()
	case quiz.PhaseReveal:
		if next := g.state.Index + 1; next < len(g.quiz.Questions) {
			g.openQuestion(next)
		} else {
			g.finish()
		}
	case quiz.PhaseFinished:
		g.stopped = true
	default:
		panic("engine: timer fired in unknown state " + g.state.String())
	}
}

func (g *Game) openQuestion(index int) {
	q := g.quiz.Questions[index]
	window := g.timing.AnswerDuration()
	for _, p := range g.players {
		p.answer = nil
	}

	deadline := time.Now().Add(window)
	g.setState(quiz.QuestionState(index, deadline.UnixMilli()))
	g.broadcast(protocol.GameState{State: g.state})
	g.broadcast(protocol.BeginQuestion{})
	g.broadcast(protocol.Question{
		Index:    index,
		Count:    len(g.quiz.Questions),
		Text:     q.Text,
		Image:    q.Image,
		Kind:     q.Kind,
		Answers:  q.Answers,
		Duration: g.timing.AnswerWindow,
	})
	g.beginPhase(window)
}

func (g *Game) reveal() {
	if !g.state.Is(quiz.PhaseQuestion) {
		panic("engine: reveal outside question phase: " + g.state.String())
	}
	index := g.state.Index
	q := &g.quiz.Questions[index]
	window := g.timing.AnswerDuration()

	g.stopTimer()
	g.stopSync()
	g.setState(quiz.Reveal(index))
	g.broadcast(protocol.GameState{State: g.state})

	for _, id := range g.order {
		p := g.players[id]
		var (
			correct bool
			points  uint32
		)
		if p.answer != nil {
			correct, points = g.quiz.Scoring.Points(q, true, p.answer.choices, p.answer.elapsed, window)
		}
		p.score += points
		g.send(p, protocol.AnswerResult{Result: quiz.AnswerResult{
			Index:   index,
			Correct: correct,
			Score:   points,
			Total:   p.score,
		}})
	}
	g.broadcast(g.scoreUpdate())
	g.armTimer(g.timing.RevealDuration())
}

func (g *Game) finish() {
	g.setState(quiz.Finished())
	g.broadcast(protocol.GameState{State: g.state})
	g.broadcast(g.scoreUpdate())
	g.armTimer(g.finishGrace)
}

func (g *Game) allAnswered() bool {
	if len(g.players) == 0 {
		return false
	}
	for _, p := range g.players {
		if p.answer == nil && !p.gone {
			return false
		}
	}
	return true
}

func (g *Game) setState(s quiz.GameState) {
	g.logger.Info("phase change", zap.Stringer("from", g.state), zap.Stringer("to", s))
	g.state = s
}

// beginPhase arms the phase timer and the TimeSync ticker for a timed phase.
func (g *Game) beginPhase(d time.Duration) {
	g.phaseStart = time.Now()
	g.phaseTotal = d
	g.armTimer(d)
	g.stopSync()
	g.ticker = time.NewTicker(g.syncInterval)
}

func (g *Game) armTimer(d time.Duration) {
	g.stopTimer()
	gen := g.timerGen
	g.timer = time.AfterFunc(d, func() {
		g.post(timerCmd{gen: gen})
	})
}

// stopTimer cancels the phase timer; a timer that already posted becomes stale.
func (g *Game) stopTimer() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.timerGen++
}

func (g *Game) stopSync() {
	if g.ticker != nil {
		g.ticker.Stop()
		g.ticker = nil
	}
}

func (g *Game) syncC() <-chan time.Time {
	if g.ticker == nil {
		return nil
	}
	return g.ticker.C
}

func (g *Game) syncTick() {
	if !g.state.Is(quiz.PhaseStarting) && !g.state.Is(quiz.PhaseQuestion) {
		g.stopSync()
		return
	}
	elapsed := time.Since(g.phaseStart)
	if elapsed > g.phaseTotal {
		elapsed = g.phaseTotal
	}
	g.broadcast(protocol.TimeSync{
		Total:   uint64(g.phaseTotal.Milliseconds()),
		Elapsed: uint64(elapsed.Milliseconds()),
	})
}
