package database

import (
	"context"
	"errors"
	"net"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

// ClassifyError sorts a store error into retry classes. Serialization
// failures, deadlocks and lock timeouts are worth retrying; constraint
// violations and missing rows are not.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03", "57P03", "53300":
			return ErrorClassTransient
		}
		return ErrorClassPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassTransient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTransient
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}
