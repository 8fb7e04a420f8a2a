package wizard

import "fmt"

// State is the position of a wizard session. Exactly one of AtStep,
// Submitting, Completed, Skipped or Cancelled.
type State interface {
	fmt.Stringer
	isState()
}

// AtStep means the user is on step Index.
type AtStep struct {
	Index int
}

// Submitting means a submission is in flight.
type Submitting struct{}

type Completed struct{}

type Skipped struct{}

// Cancelled means the wizard was dismissed without submitting.
type Cancelled struct{}

func (AtStep) isState()     {}
func (Submitting) isState() {}
func (Completed) isState()  {}
func (Skipped) isState()    {}
func (Cancelled) isState()  {}

func (s AtStep) String() string   { return fmt.Sprintf("step %d", s.Index+1) }
func (Submitting) String() string { return "submitting" }
func (Completed) String() string  { return "completed" }
func (Skipped) String() string    { return "skipped" }
func (Cancelled) String() string  { return "cancelled" }

// Terminal reports whether s ends the session.
func Terminal(s State) bool {
	switch s.(type) {
	case Completed, Skipped, Cancelled:
		return true
	}
	return false
}

// StateName is a stable lowercase name for s, used on the wire.
func StateName(s State) string {
	switch s.(type) {
	case AtStep:
		return "at_step"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}
