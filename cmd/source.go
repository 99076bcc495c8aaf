//go:build !mediadevices

package cmd

import "github.com/Ajit127639/VideoCall/internal/media"

// newSource returns the generated test tone and blank video. Build with
// -tags mediadevices for the camera and microphone.
func newSource() (media.Source, error) {
	return &media.SyntheticSource{}, nil
}
