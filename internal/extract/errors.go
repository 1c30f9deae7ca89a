package extract

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatus is returned when a product page is not served with a 2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ParseError reports a page whose HTML could not be turned into a product.
type ParseError struct {
	// URL is the product page.
	URL string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
