// Package api provides the HTTP surface of the quiz server.
//
// Endpoints:
//
// Games:
//   - POST /api/games - Create a game; body {quiz_id?, timing?, max_players?}
//   - GET /api/games - List live games (?state=Lobby&order=asc&limit=10)
//   - GET /api/games/{token} - Snapshot of one game
//   - DELETE /api/games/{token} - End a game
//
// Quiz banks:
//   - GET /api/quizzes - List quiz banks
//   - GET /api/quizzes/{id} - Full quiz bank including answer keys
//   - POST /api/quizzes - Save a quiz bank; body {quiz_id, quiz}
//
// Other:
//   - GET /api/health - Liveness plus game and connection counts
//   - GET /ws - WebSocket upgrade for players
//
// Errors are returned as JSON with an HTTP status matching the cause:
//
//	{"error": "game not found: ABCDE"}
//
// Usage:
//
//	server := api.NewServer(gameService, hub, logger)
//	http.ListenAndServe(":8080", server)
package api
