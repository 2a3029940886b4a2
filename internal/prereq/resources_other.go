//go:build !linux && !darwin

package prereq

import "errors"

var errUnsupported = errors.New("not supported on this platform")

func freeDiskBytes(string) (uint64, error) { return 0, errUnsupported }

func totalMemoryBytes() (uint64, error) { return 0, errUnsupported }
