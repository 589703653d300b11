// Package websocket connects quiz clients to running games.
//
// Every connection is served by a Gateway with three goroutines:
//   - readPump decodes text frames into protocol client messages
//   - run handles those messages in order and talks to the joined game
//   - writePump writes queued frames, one JSON object per frame
//
// A connection starts un-joined. TryConnect resolves the token through the
// Hub's Resolver and asks the game to admit the player; every other message
// sent before that is answered with a NotJoined error. A connection joins at
// most one game at a time and may join another after its game ends.
//
// Outbound frames go through a bounded queue. A client that falls too far
// behind has its connection closed, and the game sees it as departed.
//
// Usage:
//
//	hub := websocket.NewHub(dir, websocket.Options{Logger: logger})
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
package websocket
