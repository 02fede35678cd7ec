// Package apperr defines the error kinds shared by the consolidation engine,
// the lifecycle services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage failure")
)

// Error names the entity an operation failed on. OrderID and Product are
// zero when not applicable.
type Error struct {
	Kind    error
	OrderID int64
	Product string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.OrderID != 0 {
		fmt.Fprintf(&b, ": order %d", e.OrderID)
	}
	if e.Product != "" {
		fmt.Fprintf(&b, ": product %q", e.Product)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Validation builds an ErrValidation for an order line.
func Validation(orderID int64, product, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, OrderID: orderID, Product: product, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds an ErrConflict for a row whose status moved underneath us.
func Conflict(orderID int64, product, format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, OrderID: orderID, Product: product, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound.
func NotFound(orderID int64, product, format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, OrderID: orderID, Product: product, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps a collaborator failure.
func Storage(orderID int64, product string, err error) *Error {
	return &Error{Kind: ErrStorage, OrderID: orderID, Product: product, Err: err}
}

// RowRef identifies one order row in a batch report.
type RowRef struct {
	OrderID int64  `json:"order_id"`
	Product string `json:"product"`
}

// BatchError reports a batch that was aborted part way. Succeeded holds the
// rows already mutated before Failed hit Err.
type BatchError struct {
	Succeeded []RowRef
	Failed    RowRef
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch aborted at order %d product %q after %d rows: %v",
		e.Failed.OrderID, e.Failed.Product, len(e.Succeeded), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
