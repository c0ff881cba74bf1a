// Package errors provides custom error types for product and sale operations.
package errors

import "errors"

// Code classifies an error returned to the request boundary.
type Code string

const (
	NotFound            Code = "NOT_FOUND"
	BadRequest          Code = "BAD_REQUEST"
	UnprocessableEntity Code = "UNPROCESSABLE_ENTITY"
	Conflict            Code = "CONFLICT"
)

// Error is a business error carrying a code and a client-facing message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message, true
	}
	return "", "", false
}

var ErrProductNotFound = New(NotFound, "Product not found")
var ErrProductExists = New(Conflict, "Product already exists")

var ErrSaleNotFound = New(NotFound, "Sale not found")
var ErrInsufficientStock = New(UnprocessableEntity, "Such amount is not permitted to sell")
var ErrSaleItemsRequired = New(BadRequest, `"items" is required`)
var ErrStockOutOfRange = New(UnprocessableEntity, "Product quantity out of range")

var ErrFailedToFindProduct = errors.New("failed to find product")
var ErrCreateProduct = errors.New("failed to create product")
var ErrUpdateProduct = errors.New("failed to update product")
var ErrDeleteProduct = errors.New("failed to delete product")

var ErrFailedToFindSale = errors.New("failed to find sale")
var ErrCreateSale = errors.New("failed to create sale")
var ErrCreateSaleItem = errors.New("failed to create sale item")
var ErrUpdateSaleItem = errors.New("failed to update sale item")
var ErrDeleteSale = errors.New("failed to delete sale")
