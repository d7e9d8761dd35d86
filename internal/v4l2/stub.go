//go:build !linux
// +build !linux

package v4l2

import (
	"github.com/pkg/errors"

	"github.com/lanikai/camsource/internal/capture"
)

var errNotSupported = errors.New("v4l2: only supported on linux")

func probe(path string) (*deviceInfo, error) {
	return nil, errNotSupported
}

func open(path string, info *deviceInfo) (capture.Device, error) {
	return nil, errNotSupported
}
