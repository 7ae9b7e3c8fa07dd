package explainer

import (
	"errors"

	"github.com/Mindburn-Labs/conformance/pkg/trace"
)

var (
	// ErrInvalidArgument is shared with the trace package so callers can test
	// either with errors.Is.
	ErrInvalidArgument = trace.ErrInvalidArgument
	ErrIndexOutOfRange = errors.New("explainer: index out of range")
)
