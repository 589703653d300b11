// Package service provides the business logic layer for Quizler.
//
// The service package implements:
//   - Game creation from a quiz bank, with optional timing overrides
//   - Game listing and inspection through coordinator snapshots
//   - Ending games and shutting every game down on exit
//   - Quiz bank listing, loading and saving
//
// Core Interfaces:
//
// GameService is the main service interface used by the REST API and the
// MCP tools. GameDirectory maps join tokens to running games. QuizStore
// loads and stores quiz banks.
//
// Architecture:
//
// The service layer sits between the HTTP/MCP transports and the game
// coordinators. Gameplay itself never goes through the service: websocket
// gateways resolve a token in the directory and talk to the game directly.
//
// Usage:
//
//	games := directory.New()
//	quizzes, _ := config.NewManager("quizzes")
//	svc := service.NewGameService(games, quizzes, service.Options{Logger: logger})
//
//	info, err := svc.CreateGame(ctx, service.CreateGameRequest{QuizID: "capitals"})
//	if err != nil {
//		return err
//	}
//	fmt.Println("join with", info.Token)
package service
