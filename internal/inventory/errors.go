package inventory

import "errors"

var (
	// ErrProductNotFound is returned when the referenced product row
	// does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when a reservation asks for more
	// units than the product currently holds. The stock row is left
	// untouched.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidQuantity is returned when a stock operation is called
	// with a zero or negative quantity.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrProductInUse is returned when deleting a product that is still
	// referenced by order items.
	ErrProductInUse = errors.New("product is referenced by existing orders")
)
