package media

// DefaultChannelCount is the channel count requested when none is configured.
const DefaultChannelCount = 2

// Constraints are the processing hints for acquiring an input stream.
type Constraints struct {
	EchoCancellation bool `json:"echo_cancellation"`
	AutoGainControl  bool `json:"auto_gain_control"`
	NoiseSuppression bool `json:"noise_suppression"`
	ChannelCount     int  `json:"channel_count"`
}

// DefaultConstraints enables all processing on a stereo input.
func DefaultConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		AutoGainControl:  true,
		NoiseSuppression: true,
		ChannelCount:     DefaultChannelCount,
	}
}
