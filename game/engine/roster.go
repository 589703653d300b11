package engine

import (
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
)

type submission struct {
	choices []int
	elapsed time.Duration
}

type participant struct {
	id       quiz.SessionID
	name     string
	peer     Peer
	score    uint32
	ready    bool
	answer   *submission
	joinedAt time.Time
	gone     bool
}

// PlayerSnapshot describes one participant.
type PlayerSnapshot struct {
	ID       quiz.SessionID `json:"id"`
	Name     string         `json:"name"`
	Score    uint32         `json:"score"`
	Ready    bool           `json:"ready"`
	Host     bool           `json:"host"`
	JoinedAt time.Time      `json:"joined_at"`
}

// Snapshot is a point-in-time copy of a game, safe to share.
type Snapshot struct {
	Token     string           `json:"token"`
	Basic     quiz.BasicConfig `json:"basic"`
	Timing    quiz.GameTiming  `json:"timing"`
	State     quiz.GameState   `json:"state"`
	Host      quiz.SessionID   `json:"host,omitempty"`
	Players   []PlayerSnapshot `json:"players"`
	CreatedAt time.Time        `json:"created_at"`
}

func (g *Game) admit(name string, peer Peer) (quiz.SessionID, error) {
	if !g.state.Is(quiz.PhaseLobby) {
		g.logger.Debug("admission rejected", zap.String("reason", "not in lobby"), zap.Stringer("state", g.state))
		return 0, protocol.NewError(protocol.CodeNotInLobby, "game has already started")
	}

	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > quiz.MaxNameLength {
		return 0, protocol.NewError(protocol.CodeInvalidUsername, "username must be 1 to %d characters", quiz.MaxNameLength)
	}
	for _, id := range g.order {
		if strings.EqualFold(g.players[id].name, name) {
			return 0, protocol.NewError(protocol.CodeUsernameTaken, "username %q is already taken", name)
		}
	}
	if g.basic.MaxPlayers > 0 && len(g.players) >= g.basic.MaxPlayers {
		return 0, protocol.NewError(protocol.CodeGameFull, "game is full (%d players)", g.basic.MaxPlayers)
	}

	p := &participant{
		id:       g.nextID,
		name:     name,
		peer:     peer,
		joinedAt: time.Now(),
	}
	g.nextID++

	if len(g.players) == 0 && g.timer != nil {
		// first admission cancels the idle timer
		g.stopTimer()
	}
	if g.host == 0 {
		g.host = p.id
	}

	g.send(p, protocol.Connected{ID: p.id, Token: g.token, Basic: g.basic, Timing: g.timing})
	for _, id := range g.order {
		other := g.players[id]
		g.send(p, protocol.OtherPlayer{ID: other.id, Name: other.name})
	}
	g.send(p, protocol.HostChanged{ID: g.host})
	g.send(p, protocol.GameState{State: g.state})
	g.broadcast(protocol.OtherPlayer{ID: p.id, Name: p.name})

	g.players[p.id] = p
	g.order = append(g.order, p.id)

	g.logger.Info("participant admitted",
		zap.Uint32("session", uint32(p.id)),
		zap.String("name", p.name),
		zap.Int("players", len(g.players)))
	return p.id, nil
}

func (g *Game) ready(id quiz.SessionID) {
	if p, ok := g.players[id]; ok {
		p.ready = true
	}
}

func (g *Game) depart(id quiz.SessionID) {
	p, ok := g.players[id]
	if !ok {
		return
	}
	p.gone = true
	delete(g.players, id)
	for i, other := range g.order {
		if other == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.logger.Info("participant departed",
		zap.Uint32("session", uint32(id)),
		zap.Int("players", len(g.players)))

	if len(g.players) == 0 {
		g.logger.Info("last participant left")
		g.stopped = true
		return
	}

	g.broadcast(protocol.PlayerLeft{ID: id})
	if g.host == id {
		g.host = g.order[0]
		g.broadcast(protocol.HostChanged{ID: g.host})
		g.logger.Info("host changed", zap.Uint32("session", uint32(g.host)))
	}
	if g.state.Is(quiz.PhaseQuestion) && g.allAnswered() {
		g.reveal()
	}
}

// send delivers to one participant. Failures are queued as departures and
// processed after the current command.
func (g *Game) send(p *participant, msg protocol.ServerMessage) {
	if p.gone {
		return
	}
	if err := p.peer.Send(msg); err != nil {
		p.gone = true
		g.drops = append(g.drops, p.id)
		g.logger.Warn("participant unreachable",
			zap.Uint32("session", uint32(p.id)),
			zap.String("message", msg.ServerType()),
			zap.Error(err))
	}
}

// broadcast sends msg to every participant in admission order.
func (g *Game) broadcast(msg protocol.ServerMessage) {
	for _, id := range g.order {
		g.send(g.players[id], msg)
	}
}

func (g *Game) flushDrops() {
	for len(g.drops) > 0 {
		id := g.drops[0]
		g.drops = g.drops[1:]
		g.depart(id)
	}
}

func (g *Game) reject(id quiz.SessionID, err *protocol.Error) {
	g.logger.Debug("request rejected", zap.Uint32("session", uint32(id)), zap.Error(err))
	if p, ok := g.players[id]; ok {
		g.send(p, err)
	}
}

func (g *Game) scoreUpdate() protocol.ScoreUpdate {
	scores := make(map[quiz.SessionID]uint32, len(g.players))
	for id, p := range g.players {
		scores[id] = p.score
	}
	return protocol.ScoreUpdate{Scores: scores}
}

func (g *Game) snapshot() Snapshot {
	s := Snapshot{
		Token:     g.token,
		Basic:     g.basic,
		Timing:    g.timing,
		State:     g.state,
		Host:      g.host,
		Players:   make([]PlayerSnapshot, 0, len(g.order)),
		CreatedAt: g.createdAt,
	}
	for _, id := range g.order {
		p := g.players[id]
		s.Players = append(s.Players, PlayerSnapshot{
			ID:       p.id,
			Name:     p.name,
			Score:    p.score,
			Ready:    p.ready,
			Host:     p.id == g.host,
			JoinedAt: p.joinedAt,
		})
	}
	return s
}
