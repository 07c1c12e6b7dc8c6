package player

// AudioEventType identifies an audio backend event.
type AudioEventType int

const (
	AudioFinished  AudioEventType = iota // Stream played to the end
	AudioError                           // Stream failed mid-play
	AudioBuffering                       // Stream stalled
	AudioResumed                         // Stream recovered from a stall
)

// String returns the string representation of the event type.
func (t AudioEventType) String() string {
	switch t {
	case AudioFinished:
		return "finished"
	case AudioError:
		return "error"
	case AudioBuffering:
		return "buffering"
	case AudioResumed:
		return "resumed"
	default:
		return "unknown"
	}
}

// AudioEvent is emitted by an AudioPlayer on its event channel.
type AudioEvent struct {
	Type AudioEventType
	Err  error // Set for AudioError
}
