package common

import (
	"errors"
	"fmt"
)

// Category is one of the error categories from spec §7.
type Category string

const (
	CategoryInvalidArgument Category = "invalid_argument"
	CategoryIoError         Category = "io_error"
	CategoryCorruptArchive  Category = "corrupt_archive"
	CategoryCorruptIndex    Category = "corrupt_index"
	CategoryStaleIndex      Category = "stale_index"
	CategoryTypeMismatch    Category = "type_mismatch"
	CategoryValidation      Category = "validation"
	CategoryExecution       Category = "execution"
)

// One sentinel per category so callers can errors.Is against a stable
// value regardless of the wrapped detail message.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIoError         = errors.New("io error")
	ErrCorruptArchive  = errors.New("corrupt archive")
	ErrCorruptIndex    = errors.New("corrupt index")
	ErrStaleIndex      = errors.New("stale index")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrValidation      = errors.New("validation error")
	ErrExecution       = errors.New("execution error")
)

var sentinels = map[Category]error{
	CategoryInvalidArgument: ErrInvalidArgument,
	CategoryIoError:         ErrIoError,
	CategoryCorruptArchive:  ErrCorruptArchive,
	CategoryCorruptIndex:    ErrCorruptIndex,
	CategoryStaleIndex:      ErrStaleIndex,
	CategoryTypeMismatch:    ErrTypeMismatch,
	CategoryValidation:      ErrValidation,
	CategoryExecution:       ErrExecution,
}

// Wrap annotates err with the given category's sentinel so that
// errors.Is(wrapped, ErrCorruptArchive) (for example) succeeds while
// the message still carries msg's detail.
func Wrap(cat Category, msg string, err error) error {
	sentinel := sentinels[cat]
	if sentinel == nil {
		sentinel = ErrExecution
	}
	if err == nil {
		return fmt.Errorf("%s: %w", msg, sentinel)
	}
	return fmt.Errorf("%s: %w: %w", msg, sentinel, err)
}

// ErrFileHeaderMismatch is returned when the format detector (C1) sees
// bytes that don't match any recognized archive magic.
var ErrFileHeaderMismatch = fmt.Errorf("unrecognized archive header: %w", ErrInvalidArgument)
