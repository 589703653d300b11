// Package engine provides the game coordinator for Quizler.
//
// A Game owns the authoritative state of one quiz game: the roster of
// admitted participants, the phase state machine, question timing, answer
// collection and scoring. Each Game runs on its own goroutine and processes
// a FIFO inbox one command at a time, so none of its state is shared.
//
// Phases:
//
//	Lobby -> Starting -> Question(0) -> Reveal(0) -> ... -> Finished
//
// Starting -> Lobby (Cancel) is the only backward edge. Phase timers and the
// TimeSync ticker are owned by the game itself; a timer that fires after its
// phase has already advanced is ignored.
//
// Participants are reached through the Peer interface. A failing Send is
// treated as a departure of that participant.
//
// Usage:
//
//	g, err := engine.New(engine.Options{Token: "W2133", Quiz: q, Logger: logger})
//	if err != nil {
//		return err
//	}
//	go g.Run(ctx)
//
//	id, err := g.Admit(ctx, "alice", peer)
//	g.Start(id)
package engine
