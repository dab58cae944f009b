package storelogix

const (
	// INVALID_ARGUMENT_ERROR_CODE represents an error for invalid input arguments.
	INVALID_ARGUMENT_ERROR_CODE = 3
	// NOT_FOUND_ERROR_CODE represents an error for a resource not being found.
	NOT_FOUND_ERROR_CODE = 5
	// FAILED_PRECONDITION_ERROR_CODE represents an error for a failed precondition.
	FAILED_PRECONDITION_ERROR_CODE = 9
	// ABORTED_ERROR_CODE represents an error for an operation aborted due to a conflict.
	ABORTED_ERROR_CODE = 10
	// UNIMPLEMENTED_ERROR_CODE represents an error for an unimplemented feature.
	UNIMPLEMENTED_ERROR_CODE = 12
	// INTERNAL_ERROR_CODE represents an internal error.
	INTERNAL_ERROR_CODE = 13
	// UNAVAILABLE_ERROR_CODE represents an error for an unavailable external service.
	UNAVAILABLE_ERROR_CODE = 14
)

type codedError struct {
	message string
	code    int
}

func (e *codedError) Error() string {
	return e.message
}

func (e *codedError) Code() int {
	return e.code
}

// NewError returns an error with an attached status code.
func NewError(message string, code int) error {
	return &codedError{message: message, code: code}
}

// ErrorCode extracts the status code from an error created with NewError, or
// INTERNAL_ERROR_CODE if the error carries none.
func ErrorCode(err error) int {
	if coded, ok := err.(*codedError); ok {
		return coded.code
	}
	return INTERNAL_ERROR_CODE
}
