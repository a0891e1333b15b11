package experience

import (
	"errors"
	"fmt"
)

// ErrNoDateRange means no supported date range grammar matched the input.
var ErrNoDateRange = errors.New("could not parse dates")

// ParsingError reports a role duration that could not be turned into months.
// It is recorded in calculation details and never aborts a calculation.
type ParsingError struct {
	Input string
	Err   error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("parse date range %q: %v", e.Input, e.Err)
}

func (e *ParsingError) Unwrap() error {
	return e.Err
}
