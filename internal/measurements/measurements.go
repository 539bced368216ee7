// Package measurements holds helpers shared by the metric instruments of
// other packages.
package measurements

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
)

var (
	AttrStatusSuccess = attribute.String("status", "success")
	AttrStatusInvalid = attribute.String("status", "error-invalid")
	AttrStatusError   = attribute.String("status", "error-other")
)

// Must returns v, panicking on err. Instruments are created once at package
// initialisation, where an error is a programming mistake.
func Must[V any](v V, err error) V {
	if err != nil {
		panic(err)
	}
	return v
}

// Status classifies the outcome of an operation. Errors matching any of the
// invalid targets are reported as caller errors.
func Status(err error, invalid ...error) attribute.KeyValue {
	switch {
	case err == nil:
		return AttrStatusSuccess
	case isAny(err, invalid):
		return AttrStatusInvalid
	default:
		return AttrStatusError
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
