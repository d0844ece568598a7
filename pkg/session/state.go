package session

import (
	"github.com/google/uuid"

	"github.com/harun/agentdesk/pkg/agent"
)

// State is the mutable state of one session, owned by the loop goroutine
type State struct {
	ID string

	LastQuery string
	LastAgent *agent.Agent

	// LastResponse is the serving agent's last answer, when it reports one
	LastResponse string

	Exit       bool
	Regenerate bool

	offered map[string]struct{}
}

// NewState creates the state of a fresh session
func NewState() *State {
	return &State{
		ID:      uuid.NewString(),
		offered: make(map[string]struct{}),
	}
}

// markOffered records text as offered and reports whether it was new
func (s *State) markOffered(text string) bool {
	if _, seen := s.offered[text]; seen {
		return false
	}
	s.offered[text] = struct{}{}
	return true
}

// wasOffered reports whether text was already offered this session
func (s *State) wasOffered(text string) bool {
	_, seen := s.offered[text]
	return seen
}
