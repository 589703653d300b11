package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/quizler/game/directory"
	"github.com/wricardo/quizler/game/engine"
	"github.com/wricardo/quizler/game/protocol"
	"github.com/wricardo/quizler/game/quiz"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Frames read but not yet handled by the gateway.
	inboxSize = 64
)

// inbound is one decoded client frame, or the reason it could not be decoded.
type inbound struct {
	msg protocol.ClientMessage
	err error
}

// Gateway owns one websocket connection. The read pump decodes frames into
// the inbox, run handles them in order, and the write pump drains the queue.
type Gateway struct {
	hub    *Hub
	conn   *websocket.Conn
	id     string
	logger *zap.Logger

	out   *queue
	inbox chan inbound

	// Owned by run.
	game    *engine.Game
	session quiz.SessionID
	peer    *outbox
}

// run handles inbound messages until the connection closes. Leaving the
// joined game is never skipped.
func (g *Gateway) run() {
	defer func() {
		g.leave()
		g.out.close()
		g.hub.unregisterGateway(g)
		g.logger.Info("connection closed")
	}()

	for {
		var gameDone <-chan struct{}
		if g.game != nil {
			gameDone = g.game.Done()
		}

		select {
		case in, ok := <-g.inbox:
			if !ok {
				return
			}
			if in.err != nil {
				g.logger.Debug("malformed frame", zap.Error(in.err))
				g.reply(protocol.AsError(in.err))
				continue
			}
			g.handle(in.msg)

		case <-gameDone:
			g.logger.Info("game ended", zap.String("token", g.game.Token()))
			g.peer.detach()
			g.game, g.session, g.peer = nil, 0, nil
		}
	}
}

func (g *Gateway) handle(msg protocol.ClientMessage) {
	if m, ok := msg.(protocol.TryConnect); ok {
		g.tryConnect(m)
		return
	}

	if g.game == nil {
		g.reply(protocol.NewError(protocol.CodeNotJoined, "join a game before sending %s", msg.ClientType()))
		return
	}

	switch m := msg.(type) {
	case protocol.Ready:
		g.game.Ready(g.session)
	case protocol.Start:
		g.game.Start(g.session)
	case protocol.Cancel:
		g.game.Cancel(g.session)
	case protocol.Answer:
		g.game.Answer(g.session, m.Answer)
	}
}

// tryConnect resolves the token and waits for admission. Frames that arrive
// meanwhile stay queued in the inbox.
func (g *Gateway) tryConnect(m protocol.TryConnect) {
	if g.game != nil {
		g.reply(protocol.NewError(protocol.CodeAlreadyJoined, "already joined game %s", g.game.Token()))
		return
	}

	game, err := g.hub.resolver.Resolve(m.Token)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			g.logger.Warn("resolving token failed", zap.String("token", m.Token), zap.Error(err))
		}
		g.reply(protocol.NewError(protocol.CodeUnknownToken, "no game with token %q", m.Token))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.hub.opts.AdmitTimeout)
	defer cancel()

	peer := newOutbox(g.out)
	id, err := game.Admit(ctx, m.Username, peer)
	if err != nil {
		peer.detach()
		switch {
		case errors.Is(err, engine.ErrGameClosed):
			g.reply(protocol.NewError(protocol.CodeUnknownToken, "no game with token %q", m.Token))
		case errors.Is(err, context.DeadlineExceeded):
			g.logger.Warn("admission timed out", zap.String("token", game.Token()))
			g.reply(protocol.NewError(protocol.CodeInternal, "admission timed out"))
		default:
			g.logger.Debug("admission rejected", zap.String("token", game.Token()), zap.Error(err))
			g.reply(protocol.AsError(err))
		}
		return
	}

	g.game, g.session, g.peer = game, id, peer
	g.logger.Info("joined game",
		zap.String("token", game.Token()),
		zap.Uint32("session", uint32(id)))
}

func (g *Gateway) leave() {
	if g.game == nil {
		return
	}
	g.peer.detach()
	g.game.Depart(g.session)
	g.game, g.session, g.peer = nil, 0, nil
}

// reply sends a message to this connection only.
func (g *Gateway) reply(msg protocol.ServerMessage) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		g.logger.Error("encoding reply", zap.Error(err))
		return
	}
	if err := g.out.push(frame); err != nil {
		g.logger.Debug("dropping reply", zap.Error(err))
	}
}

// readPump decodes frames into the inbox until the connection fails.
func (g *Gateway) readPump() {
	defer func() {
		close(g.inbox)
		g.conn.Close()
	}()

	g.conn.SetReadLimit(maxMessageSize)
	g.conn.SetReadDeadline(time.Now().Add(pongWait))
	g.conn.SetPongHandler(func(string) error {
		g.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := g.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				g.logger.Info("websocket error", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			g.inbox <- inbound{err: protocol.NewError(protocol.CodeMalformedMessage, "expected a text frame")}
			continue
		}

		msg, err := protocol.DecodeClientMessage(data)
		g.inbox <- inbound{msg: msg, err: err}
	}
}

// writePump writes one JSON object per frame and keeps the connection alive
// with pings.
func (g *Gateway) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		g.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-g.out.frames:
			g.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				g.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := g.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			g.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := g.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
