package data

import "errors"

// Errors surfaced by the data layer. All of them are fatal for the call that
// produced them; nothing in this package retries.
var (
	// ErrAcquisition means the raw dataset could not be fetched or decoded.
	ErrAcquisition = errors.New("dataset acquisition failed")

	// ErrInvalidSplit means the requested split sizes do not sum to the
	// dataset length.
	ErrInvalidSplit = errors.New("invalid split sizes")

	// ErrEmptySubset means a loader was asked to iterate zero samples.
	ErrEmptySubset = errors.New("empty subset")
)
