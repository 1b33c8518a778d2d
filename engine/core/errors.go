package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrFatalSetup marks failures while creating the instance, the device or
	// any resource that lives for the whole session.
	ErrFatalSetup = errors.New("fatal setup error")
	// ErrFatalFrame marks failures while recording, submitting or presenting
	// a frame, other than an out-of-date swapchain.
	ErrFatalFrame = errors.New("fatal frame error")
	// ErrResourceExhausted marks a missing memory type, an unsupported depth
	// format or an allocation the device refused.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrSwapchainOutOfDate is recovered by the renderer itself and never
	// leaves it.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
)

type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindFatalSetup
	ErrorKindFatalFrame
	ErrorKindResourceExhausted
	ErrorKindRecoverable
	ErrorKindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindFatalSetup:
		return "fatal-setup"
	case ErrorKindFatalFrame:
		return "fatal-frame"
	case ErrorKindResourceExhausted:
		return "resource-exhausted"
	case ErrorKindRecoverable:
		return "recoverable"
	default:
		return "unknown"
	}
}

// FatalSetup marks err as a setup failure. A nil error stays nil.
func FatalSetup(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrFatalSetup)
}

// FatalFrame marks err as a per-frame failure. A nil error stays nil.
func FatalFrame(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrFatalFrame)
}

// ResourceExhausted marks err as an exhausted resource. A nil error stays nil.
func ResourceExhausted(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrResourceExhausted)
}

// KindOf classifies err. Resource exhaustion wins over the phase markers so a
// missing memory type during setup is still reported as exhaustion.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrResourceExhausted):
		return ErrorKindResourceExhausted
	case errors.Is(err, ErrSwapchainOutOfDate):
		return ErrorKindRecoverable
	case errors.Is(err, ErrFatalSetup):
		return ErrorKindFatalSetup
	case errors.Is(err, ErrFatalFrame):
		return ErrorKindFatalFrame
	default:
		return ErrorKindUnknown
	}
}
