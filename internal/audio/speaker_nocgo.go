//go:build !cgo

package audio

// Available indicates whether speaker output is supported in this build.
// Audio requires cgo for native sound libraries.
const Available = false

// NewSpeaker always fails when cgo is disabled.
func NewSpeaker() (Output, error) {
	return nil, ErrUnavailable
}
