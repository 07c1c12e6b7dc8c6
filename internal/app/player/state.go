// Package player provides per-guild playback sessions.
package player

// State represents the playback state.
type State int

const (
	StateIdle      State = iota // No track playing (queue empty or stopped)
	StateStarting               // Resolving the next reference
	StatePlaying                // Track is playing
	StateBuffering              // Stream stalled, waiting for data
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StateBuffering:
		return "buffering"
	default:
		return "unknown"
	}
}
