package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wricardo/quizler/game/quiz"
)

// Message type discriminators.
const (
	TypeTryConnect = "TryConnect"
	TypeReady      = "Ready"
	TypeStart      = "Start"
	TypeCancel     = "Cancel"
	TypeAnswer     = "Answer"

	TypeConnected     = "Connected"
	TypeOtherPlayer   = "OtherPlayer"
	TypeGameState     = "GameState"
	TypeTimeSync      = "TimeSync"
	TypeQuestion      = "Question"
	TypeAnswerResult  = "AnswerResult"
	TypeBeginQuestion = "BeginQuestion"
	TypeScoreUpdate   = "ScoreUpdate"
	TypePlayerLeft    = "PlayerLeft"
	TypeHostChanged   = "HostChanged"
	TypeError         = "Error"
)

// ClientMessage is any message a client may send.
type ClientMessage interface {
	ClientType() string
}

// ServerMessage is any message the server may send.
type ServerMessage interface {
	ServerType() string
}

// Client messages

// TryConnect asks to join the game identified by Token.
type TryConnect struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Ready marks the sender as ready to play.
type Ready struct{}

// Start asks the host's game to begin its countdown.
type Start struct{}

// Cancel aborts the countdown and returns to the lobby.
type Cancel struct{}

// Answer submits a choice for the current question.
type Answer struct {
	Answer quiz.QuestionAnswer
}

func (TryConnect) ClientType() string { return TypeTryConnect }
func (Ready) ClientType() string      { return TypeReady }
func (Start) ClientType() string      { return TypeStart }
func (Cancel) ClientType() string     { return TypeCancel }
func (Answer) ClientType() string     { return TypeAnswer }

// Server messages

// Connected confirms admission to a game.
type Connected struct {
	ID     quiz.SessionID   `json:"id"`
	Token  string           `json:"token"`
	Basic  quiz.BasicConfig `json:"basic"`
	Timing quiz.GameTiming  `json:"timing"`
}

// OtherPlayer announces another participant of the game.
type OtherPlayer struct {
	ID   quiz.SessionID `json:"id"`
	Name string         `json:"name"`
}

// GameState carries the authoritative phase.
type GameState struct {
	State quiz.GameState
}

// TimeSync lets clients render countdowns without trusting their clocks.
// Both values are milliseconds.
type TimeSync struct {
	Total   uint64 `json:"total"`
	Elapsed uint64 `json:"elapsed"`
}

// Question is the client view of a question; it never carries the key.
type Question struct {
	Index    int               `json:"index"`
	Count    int               `json:"count"`
	Text     string            `json:"text"`
	Image    string            `json:"image,omitempty"`
	Kind     quiz.QuestionKind `json:"kind"`
	Answers  []string          `json:"answers"`
	Duration uint64            `json:"duration"`
}

// AnswerResult is sent to one participant after a question closes.
type AnswerResult struct {
	Result quiz.AnswerResult
}

// BeginQuestion tells clients to show the answer options.
type BeginQuestion struct{}

// ScoreUpdate is a snapshot of every participant's cumulative score.
type ScoreUpdate struct {
	Scores map[quiz.SessionID]uint32 `json:"scores"`
}

// PlayerLeft announces a departed participant.
type PlayerLeft struct {
	ID quiz.SessionID `json:"id"`
}

// HostChanged names the participant allowed to Start and Cancel.
type HostChanged struct {
	ID quiz.SessionID `json:"id"`
}

func (Connected) ServerType() string     { return TypeConnected }
func (OtherPlayer) ServerType() string   { return TypeOtherPlayer }
func (GameState) ServerType() string     { return TypeGameState }
func (TimeSync) ServerType() string      { return TypeTimeSync }
func (Question) ServerType() string      { return TypeQuestion }
func (AnswerResult) ServerType() string  { return TypeAnswerResult }
func (BeginQuestion) ServerType() string { return TypeBeginQuestion }
func (ScoreUpdate) ServerType() string   { return TypeScoreUpdate }
func (PlayerLeft) ServerType() string    { return TypePlayerLeft }
func (HostChanged) ServerType() string   { return TypeHostChanged }
func (*Error) ServerType() string        { return TypeError }

// body returns the JSON object written next to "ty" for a message.
func body(msg any) any {
	switch m := msg.(type) {
	case Answer:
		return m.Answer
	case GameState:
		return m.State
	case AnswerResult:
		return m.Result
	case Ready, Start, Cancel, BeginQuestion:
		return struct{}{}
	default:
		return m
	}
}

// tag marshals v and inserts the discriminator as the first field.
func tag(ty string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) < 2 || data[0] != '{' {
		return nil, fmt.Errorf("protocol: %s payload is not a JSON object", ty)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"ty":`)
	tyJSON, _ := json.Marshal(ty)
	buf.Write(tyJSON)
	if rest := bytes.TrimSpace(data[1:]); len(rest) > 1 {
		buf.WriteByte(',')
	}
	buf.Write(data[1:])
	return buf.Bytes(), nil
}

// Encode serializes a server message as one JSON frame.
func Encode(msg ServerMessage) ([]byte, error) {
	return tag(msg.ServerType(), body(msg))
}

// EncodeClient serializes a client message as one JSON frame.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	return tag(msg.ClientType(), body(msg))
}

type envelope struct {
	Ty string `json:"ty"`
}

// DecodeClientMessage parses one client frame. Any failure is reported as a
// MalformedMessage error.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewError(CodeMalformedMessage, "invalid JSON: %v", err)
	}

	var (
		msg ClientMessage
		err error
	)
	switch env.Ty {
	case TypeTryConnect:
		var m TryConnect
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeReady:
		msg = Ready{}
	case TypeStart:
		msg = Start{}
	case TypeCancel:
		msg = Cancel{}
	case TypeAnswer:
		var m Answer
		err = json.Unmarshal(data, &m.Answer)
		msg = m
	case "":
		return nil, NewError(CodeMalformedMessage, "missing message type")
	default:
		return nil, NewError(CodeMalformedMessage, "unknown message type %q", env.Ty)
	}
	if err != nil {
		return nil, NewError(CodeMalformedMessage, "invalid %s payload: %v", env.Ty, err)
	}
	return msg, nil
}

// DecodeServerMessage parses one server frame.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding server message: %w", err)
	}

	var (
		msg ServerMessage
		err error
	)
	switch env.Ty {
	case TypeConnected:
		var m Connected
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeOtherPlayer:
		var m OtherPlayer
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeGameState:
		var m GameState
		err = json.Unmarshal(data, &m.State)
		msg = m
	case TypeTimeSync:
		var m TimeSync
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeQuestion:
		var m Question
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeAnswerResult:
		var m AnswerResult
		err = json.Unmarshal(data, &m.Result)
		msg = m
	case TypeBeginQuestion:
		msg = BeginQuestion{}
	case TypeScoreUpdate:
		var m ScoreUpdate
		err = json.Unmarshal(data, &m)
		msg = m
	case TypePlayerLeft:
		var m PlayerLeft
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeHostChanged:
		var m HostChanged
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeError:
		m := &Error{}
		err = json.Unmarshal(data, m)
		msg = m
	default:
		return nil, fmt.Errorf("unknown server message type %q", env.Ty)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", env.Ty, err)
	}
	return msg, nil
}
