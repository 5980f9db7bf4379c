//go:build !windows

// Package service runs the agent under the Windows service control
// manager. On other platforms the agent always runs in the foreground.
package service

import (
	"context"
	"errors"
	"time"
)

var ErrUnsupported = errors.New("windows services are not supported on this platform")

func Run(name string, run func(ctx context.Context) error, heartbeat time.Duration) error {
	return ErrUnsupported
}

func IsWindowsService() (bool, error) {
	return false, nil
}
