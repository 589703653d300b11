// Package quiz provides the domain model shared by every part of the quiz server.
//
// The quiz package implements:
//   - Quiz banks (title, timing, scoring rules and questions)
//   - The GameState phase machine values exchanged with clients
//   - Answer evaluation and speed-bonus scoring
//   - Quiz bank validation
//
// Core Types:
//
// Quiz is an immutable question bank handed to a game at creation time.
// BasicConfig and GameTiming are the public, per-game metadata sent to every
// participant on admission. Question holds the answer key, which never leaves
// the server before the reveal phase; clients only ever see a question view
// built by the coordinator.
//
// Phases:
//
//	Lobby -> Starting -> Question(0) -> Reveal(0) -> ... -> Finished
//
// Starting -> Lobby (cancel) is the only backward edge and Finished is
// terminal.
//
// Scoring:
//
// A correct answer earns Scoring.Correct points plus a speed bonus that
// decreases linearly from Scoring.SpeedBonus (instant answer) to zero (answer
// at the deadline). Wrong and missing answers earn nothing.
package quiz
