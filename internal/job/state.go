package job

// State is the position of a job in its lifecycle.
type State int

const (
	StateStaging State = iota
	StateUploading
	StateSubmitted
	StatePolling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStaging:
		return "staging"
	case StateUploading:
		return "uploading"
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
