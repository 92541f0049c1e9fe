package chat

import (
	"strings"

	"github.com/thiagozs/go-gptchat/internal/attach"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the conversation. User turns may carry
// attachments after the question text.
type Turn struct {
	Role        Role
	Text        string
	Attachments []attach.Block
}

// Multipart reports whether the turn must be sent as a content list.
func (t Turn) Multipart() bool { return len(t.Attachments) > 0 }

// Log is the append-only conversation of a session. The instruction block
// is kept apart from the turns; backends decide where it goes.
type Log struct {
	Instructions string

	turns        []Turn
	continuation string
	// acked is the number of turns the server already holds under continuation.
	acked int
}

func NewLog(instructions string) *Log {
	return &Log{Instructions: strings.TrimSpace(instructions)}
}

func (l *Log) Append(t Turn) { l.turns = append(l.turns, t) }

func (l *Log) AddUser(text string, blocks []attach.Block) {
	l.Append(Turn{Role: RoleUser, Text: text, Attachments: blocks})
}

func (l *Log) AddAssistant(text string) { l.Append(Turn{Role: RoleAssistant, Text: text}) }

// Turns returns a copy of the turns.
func (l *Log) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

func (l *Log) Len() int { return len(l.turns) }

// Empty reports whether nothing beyond the instruction block was said.
func (l *Log) Empty() bool { return len(l.turns) == 0 }

// Continuation is the id of the last response the server stored, if any.
func (l *Log) Continuation() string { return l.continuation }

// Acknowledge records that the server now holds every turn so far under
// responseID.
func (l *Log) Acknowledge(responseID string) {
	if responseID == "" {
		return
	}
	l.continuation = responseID
	l.acked = len(l.turns)
}

// Pending returns the turns the server has not seen yet.
func (l *Log) Pending() []Turn {
	out := make([]Turn, len(l.turns)-l.acked)
	copy(out, l.turns[l.acked:])
	return out
}
