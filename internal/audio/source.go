package audio

// FrameSource delivers mono PCM frames from a capture backend. The engine
// treats the source as optional: without one it renders from the palette
// alone (standby breathing and static band colors).
type FrameSource interface {
	// SampleRate of the delivered frames in Hz.
	SampleRate() int
	// Frames is closed when the source shuts down.
	Frames() <-chan []float64
	Close() error
}
