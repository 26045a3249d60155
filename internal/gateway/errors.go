package gateway

import (
	"errors"

	"github.com/aws/smithy-go"
)

// isAccessDenied matches the permission-denied class observed while a fresh
// execution role propagates. Only this class is retried at the creation step.
func isAccessDenied(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "AccessDeniedException"
}

// isNotFoundClass matches the absence errors the teardown path tolerates
// across the services it touches.
func isNotFoundClass(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "ResourceNotFoundException", "NoSuchEntity", "NotFoundException":
		return true
	}
	return false
}
