package loader

import (
	"fmt"
	"time"

	"github.com/tdxtools/tdxmodule/version"
)

// PreconditionError indicates that a candidate was rejected before any write
// to the control interface.
type PreconditionError struct {
	Module version.Version
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("refusing to load module %s: %s", e.Module, e.Reason)
}

// MissingControlRootError indicates that the firmware upload interface is not
// present on this platform.
type MissingControlRootError struct {
	Path string
}

func (e *MissingControlRootError) Error() string {
	return fmt.Sprintf("control interface %s does not exist", e.Path)
}

// TimeoutError indicates that the status node never reported idle within the
// polling window.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for status to become %q after %v", StatusIdle, e.Timeout)
}

// DeviceError carries the failure reason reported by the error node, verbatim
// after trimming.
type DeviceError struct {
	Reason string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("firmware update failed: %s", e.Reason)
}
