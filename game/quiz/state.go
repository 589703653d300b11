package quiz

import (
	"encoding/json"
	"fmt"
)

// Phase names one state of the game state machine.
type Phase string

const (
	PhaseLobby    Phase = "Lobby"
	PhaseStarting Phase = "Starting"
	PhaseQuestion Phase = "Question"
	PhaseReveal   Phase = "Reveal"
	PhaseFinished Phase = "Finished"
)

// GameState is the authoritative phase of a game. Index is meaningful for
// Question and Reveal; Deadline (unix milliseconds) only for Question.
type GameState struct {
	Phase    Phase
	Index    int
	Deadline int64
}

// Lobby is the initial state.
func Lobby() GameState { return GameState{Phase: PhaseLobby} }

// Starting is the countdown before the first question.
func Starting() GameState { return GameState{Phase: PhaseStarting} }

// QuestionState is question index open for answers until deadline.
func QuestionState(index int, deadline int64) GameState {
	return GameState{Phase: PhaseQuestion, Index: index, Deadline: deadline}
}

// Reveal shows the results of question index.
func Reveal(index int) GameState { return GameState{Phase: PhaseReveal, Index: index} }

// Finished is the terminal state.
func Finished() GameState { return GameState{Phase: PhaseFinished} }

// Is reports whether the state is in phase p.
func (s GameState) Is(p Phase) bool { return s.Phase == p }

// String renders the state the way it is written in logs, e.g. "Question(2)".
func (s GameState) String() string {
	switch s.Phase {
	case PhaseQuestion, PhaseReveal:
		return fmt.Sprintf("%s(%d)", s.Phase, s.Index)
	default:
		return string(s.Phase)
	}
}

type gameStateJSON struct {
	State    Phase  `json:"state"`
	Index    *int   `json:"index,omitempty"`
	Deadline *int64 `json:"deadline,omitempty"`
}

// MarshalJSON writes only the fields relevant to the phase. The zero value
// is written as Lobby.
func (s GameState) MarshalJSON() ([]byte, error) {
	out := gameStateJSON{State: s.Phase}
	if out.State == "" {
		out.State = PhaseLobby
	}
	switch s.Phase {
	case PhaseQuestion:
		index, deadline := s.Index, s.Deadline
		out.Index = &index
		out.Deadline = &deadline
	case PhaseReveal:
		index := s.Index
		out.Index = &index
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the phase-dependent shape written by MarshalJSON.
func (s *GameState) UnmarshalJSON(data []byte) error {
	var in gameStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.State {
	case "":
		*s = Lobby()
	case PhaseLobby, PhaseStarting, PhaseFinished:
		*s = GameState{Phase: in.State}
	case PhaseQuestion:
		if in.Index == nil || in.Deadline == nil {
			return fmt.Errorf("question state requires index and deadline")
		}
		*s = QuestionState(*in.Index, *in.Deadline)
	case PhaseReveal:
		if in.Index == nil {
			return fmt.Errorf("reveal state requires index")
		}
		*s = Reveal(*in.Index)
	default:
		return fmt.Errorf("unknown game state %q", in.State)
	}
	return nil
}
