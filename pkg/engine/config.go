package engine

// Config is the engine's immutable-per-run configuration, supplied by
// the caller to Start. There is no on-disk configuration format; the
// CLI entry points build one of these from flags.
type Config struct {
	// InputDeviceIndex and OutputDeviceIndex select a device by its
	// position in hostaudio.Backend.Devices(). A negative value
	// (DefaultDevice) means "use the backend's default device".
	InputDeviceIndex  int
	OutputDeviceIndex int

	// SampleRate and FramesPerBuffer are fixed by the pipeline's
	// assumptions; DefaultConfig sets them to the only values this
	// engine supports, but they're left open here for an FFI caller
	// that wants to assert its own expectations against them.
	SampleRate      float64
	FramesPerBuffer int

	// ExclusiveMode requests exclusive/pro-audio access to the
	// devices. If the backend can't honor it, Start retries in shared
	// mode rather than failing outright.
	ExclusiveMode bool

	// SuppressionLevel, VADThreshold, and ComfortNoise seed the
	// denoise pipeline's tunables; they remain adjustable at runtime
	// through the Engine's setters after Start.
	SuppressionLevel float64
	VADThreshold     float64
	ComfortNoise     bool
}

// DefaultDevice requests the backend's default input or output device.
const DefaultDevice = -1

// DefaultConfig returns the documented defaults: 48kHz, 480 frames per
// buffer (10ms), default devices, shared mode, suppression level 1.0,
// VAD threshold 0.65, comfort noise on.
func DefaultConfig() Config {
	return Config{
		InputDeviceIndex:  DefaultDevice,
		OutputDeviceIndex: DefaultDevice,
		SampleRate:        48000,
		FramesPerBuffer:   480,
		ExclusiveMode:     false,
		SuppressionLevel:  1.0,
		VADThreshold:      0.65,
		ComfortNoise:      true,
	}
}
