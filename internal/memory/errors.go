package memory

import (
	"errors"

	"github.com/aws/smithy-go"
)

func isNotFoundClass(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ResourceNotFoundException"
}
