package seu

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a lookup for a raw, meta, cube or SEU that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingMeta marks a cube synthesis attempted before all eight metas exist.
	ErrMissingMeta = errors.New("missing channel meta")

	// ErrInvalidChannel marks an identifier outside CH1..CH8.
	ErrInvalidChannel = errors.New("invalid channel_id")

	// ErrIncomplete marks a cube build requested before all eight raws are registered.
	ErrIncomplete = errors.New("not all channel raws present")

	// ErrInvalidRequest marks a request missing a required field.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInputsChanged marks a build whose raws were replaced while it ran.
	ErrInputsChanged = errors.New("channel inputs changed during build")
)

// MissingRaw wraps ErrNotFound for a channel whose raw record is absent.
func MissingRaw(seuID string, ch ChannelID) error {
	return fmt.Errorf("missing raw for %s (seu %s): %w", ch, seuID, ErrNotFound)
}

// MissingMeta wraps ErrMissingMeta naming the first absent channel.
func MissingMeta(seuID string, ch ChannelID) error {
	return fmt.Errorf("%w for %s (seu %s)", ErrMissingMeta, ch, seuID)
}
