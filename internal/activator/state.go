package activator

// State is the lifecycle state of a registered extension.
type State int

const (
	// StateNotLoaded - registered but never activated.
	StateNotLoaded State = iota

	// StateLoading - setup entry point is running.
	StateLoading

	// StateLoaded - setup completed successfully.
	StateLoaded

	// StateFailed - setup returned an error or panicked.
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not-loaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
