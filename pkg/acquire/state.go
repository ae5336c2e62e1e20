package acquire

import "fmt"

// State is the acquisition loop phase.
type State int32

const (
	Idle State = iota
	WaitingForReady
	Sampling
	Delivering
	Stopped
)

var stateNames = [...]string{"idle", "waiting", "sampling", "delivering", "stopped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown acquisition state %q", b)
}
