//go:build !linux

package audio

import (
	"fmt"
	"runtime"

	"hostcast/internal/types"
)

func NewLoopback() (types.AudioCapturer, error) {
	return nil, fmt.Errorf("%w: loopback capture not supported on %s", ErrNoDevice, runtime.GOOS)
}
