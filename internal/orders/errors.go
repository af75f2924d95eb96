package orders

import "errors"

var (
	// ErrOrderNotFound is returned when the referenced order row does
	// not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotModifiable is returned when items, charges or contact
	// fields are mutated on an order whose status no longer allows it.
	ErrOrderNotModifiable = errors.New("order can no longer be modified")

	// ErrInvalidTransition is returned for any status change that is
	// not a legal edge of the lifecycle table. The order row is left
	// untouched.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrItemNotFound is returned when removing an item that does not
	// belong to the order.
	ErrItemNotFound = errors.New("order item not found")

	// ErrInvalidQuantity is returned when an item is added with a
	// quantity below one.
	ErrInvalidQuantity = errors.New("item quantity must be a positive integer")

	// ErrInvalidAmount is returned when a negative tax or discount
	// amount is supplied.
	ErrInvalidAmount = errors.New("amount must not be negative")
)
