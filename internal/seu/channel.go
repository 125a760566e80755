package seu

import "fmt"

// #region channel-id

// ChannelID names one of the eight fixed input streams of an SEU.
type ChannelID string

const (
	ChannelVisual      ChannelID = "CH1" // video frames / visual scene
	ChannelAudio       ChannelID = "CH2" // voice, ambient noise, environmental sound
	ChannelSpatial     ChannelID = "CH3" // location, trajectory, timestamps
	ChannelBiometric   ChannelID = "CH4" // heart rate, gesture, micro-expression
	ChannelText        ChannelID = "CH5" // free-text input
	ChannelDevice      ChannelID = "CH6" // app usage, touch, clicks
	ChannelUserMode    ChannelID = "CH7" // user-declared mode / session context
	ChannelEnvironment ChannelID = "CH8" // temperature, lux, noise level, place
)

// Channels is the fixed declaration order. Every per-SEU iteration uses it.
var Channels = []ChannelID{
	ChannelVisual,
	ChannelAudio,
	ChannelSpatial,
	ChannelBiometric,
	ChannelText,
	ChannelDevice,
	ChannelUserMode,
	ChannelEnvironment,
}

// TimelineChannel carries the canonical ts_start/ts_end for the temporal axis.
const TimelineChannel = ChannelBiometric

// #endregion channel-id

// #region validation

// Valid reports whether c is one of the eight fixed identifiers.
func (c ChannelID) Valid() bool {
	for _, ch := range Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// ParseChannel validates an identifier received at an API boundary.
func ParseChannel(s string) (ChannelID, error) {
	c := ChannelID(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	}
	return c, nil
}

// #endregion validation
