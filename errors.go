package atrdisk

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type baseDriverError string

const rootError = baseDriverError("")

// Fatal to the operation that hit them.
var ErrIOFailed = rootError.WithMessage("Input/output error")
var ErrInvalidSector = rootError.WithMessage("Invalid sector number")
var ErrUnknownGeometry = rootError.WithMessage("Unrecognized disk geometry")

// Recoverable; the image is left in the state documented for the operation.
var ErrDirectoryFull = rootError.WithMessage("Directory full")
var ErrNoSpaceOnDevice = rootError.WithMessage("No space left on device")
var ErrNotFound = rootError.WithMessage("No such file or directory")
var ErrChainTooLong = rootError.WithMessage("Sector chain too long")
var ErrExists = rootError.WithMessage("File exists")

var ErrFileSystemCorrupted = rootError.WithMessage("Structure needs cleaning")
var ErrFileTooLarge = rootError.WithMessage("File too large")
var ErrInvalidArgument = rootError.WithMessage("Invalid argument")
var ErrPermissionDenied = rootError.WithMessage("Permission denied")
var ErrReadOnlyFileSystem = rootError.WithMessage("Read-only file system")

func (e baseDriverError) Error() string {
	return string(e)
}

func (e baseDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       message,
		originalError: e,
	}
}

func (e baseDriverError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customDriverError) Wrap(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}
