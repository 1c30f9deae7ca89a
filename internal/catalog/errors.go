package catalog

import (
	"errors"
	"fmt"
)

// ErrProductNotFound is returned by lookups that match no product row.
var ErrProductNotFound = errors.New("product not found")

// PersistenceError reports a failed schema or row operation.
// Persistence failures are fatal for a crawl run.
type PersistenceError struct {
	// Op names the failed operation, e.g. "upsert product".
	Op string

	// ProductID is set for row-level failures.
	ProductID string

	// Err is the driver error.
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("catalog: %s (product %s): %v", e.Op, e.ProductID, e.Err)
	}
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

// Unwrap returns the driver error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op, productID string, err error) error {
	return &PersistenceError{Op: op, ProductID: productID, Err: err}
}
