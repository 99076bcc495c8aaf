//go:build mediadevices

package cmd

import (
	"fmt"

	"github.com/Ajit127639/VideoCall/internal/media"
)

func newSource() (media.Source, error) {
	src, err := media.NewCaptureSource()
	if err != nil {
		return nil, fmt.Errorf("open capture devices: %w", err)
	}
	return src, nil
}
