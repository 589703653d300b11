// Package mcp exposes game administration to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API, so the MCP surface can run in-process behind /mcp or as a
// separate stdio process pointed at a running server.
//
// MCP Tools:
//   - list_quizzes: List quiz banks
//   - get_quiz: Show a quiz bank with its answer keys
//   - create_game: Create a game and return its join token
//   - list_games: List live games, optionally by phase
//   - get_game: Phase, players and scores of one game
//   - end_game: End a game early
//   - how_to_play: Game flow and websocket protocol reference
//
// Playing itself happens over the websocket endpoint; MCP only manages games.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
