//go:build !tinygo && !cgo

package hal

import "errors"

// ErrNoWindow is returned by RunWindow in builds without cgo.
var ErrNoWindow = errors.New("hal: window mode needs a cgo build, use -headless")

func RunWindow(func(HAL) func() error) error { return ErrNoWindow }
