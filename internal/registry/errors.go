package registry

import "errors"

// Every precondition violation maps to exactly one of these sentinels. The
// registry never partially applies a mutation: an error means no state changed.
var (
	// ErrNotFound is returned when no asset exists for the requested id.
	ErrNotFound = errors.New("asset not found")

	// ErrNotOwner is returned when the caller lacks authority for the
	// requested transition.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrInvalidPrice is returned by List for a non-positive price.
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrAlreadyListed is returned by List when the asset is already for sale.
	ErrAlreadyListed = errors.New("asset already listed")

	// ErrNotListed is returned by Delist and Buy when the asset is not for sale.
	ErrNotListed = errors.New("asset not listed")

	// ErrWrongPayment is returned by Buy when the payment does not match the
	// listed price exactly. Overpayment is rejected; no change is returned.
	ErrWrongPayment = errors.New("payment does not match price")

	// ErrInvalidTokenURI is returned by Mint for an empty token URI.
	ErrInvalidTokenURI = errors.New("token URI must not be empty")
)
