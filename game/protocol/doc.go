// Package protocol defines the wire messages exchanged between quiz clients
// and the server.
//
// Every frame is a single JSON object carrying a "ty" discriminator:
//
//	{"ty":"TryConnect","token":"W2133","username":"alice"}
//	{"ty":"Answer","index":0,"choices":[2]}
//	{"ty":"GameState","state":"Question","index":0,"deadline":1712345678901}
//
// Client messages are decoded with DecodeClientMessage and server messages
// are written with Encode. DecodeServerMessage exists for clients written in
// Go (bots, tests). Payload structs whose fields belong to a nested domain
// value (GameState, Answer, AnswerResult) are flattened next to "ty".
//
// Errors sent to a client are *Error values; they double as Go errors so the
// coordinator and gateway can return them and match them with errors.Is.
package protocol
