package engine

import (
	"time"

	"github.com/wricardo/quizler/game/quiz"
)

// command is one entry of a game's inbox.
type command interface {
	apply(g *Game)
}

type admitReply struct {
	id  quiz.SessionID
	err error
}

type admitCmd struct {
	name  string
	peer  Peer
	reply chan<- admitReply
}

func (c admitCmd) apply(g *Game) {
	id, err := g.admit(c.name, c.peer)
	c.reply <- admitReply{id: id, err: err}
}

type readyCmd struct{ id quiz.SessionID }

func (c readyCmd) apply(g *Game) { g.ready(c.id) }

type startCmd struct{ id quiz.SessionID }

func (c startCmd) apply(g *Game) { g.start(c.id) }

type cancelCmd struct{ id quiz.SessionID }

func (c cancelCmd) apply(g *Game) { g.cancel(c.id) }

type answerCmd struct {
	id     quiz.SessionID
	answer quiz.QuestionAnswer
	at     time.Time
}

func (c answerCmd) apply(g *Game) { g.answer(c.id, c.answer, c.at) }

type departCmd struct{ id quiz.SessionID }

func (c departCmd) apply(g *Game) { g.depart(c.id) }

type snapshotCmd struct{ reply chan<- Snapshot }

func (c snapshotCmd) apply(g *Game) { c.reply <- g.snapshot() }

// timerCmd is posted by phase timers. A stale generation is ignored.
type timerCmd struct{ gen uint64 }

func (c timerCmd) apply(g *Game) {
	if c.gen != g.timerGen {
		return
	}
	g.timer = nil
	g.expire()
}
