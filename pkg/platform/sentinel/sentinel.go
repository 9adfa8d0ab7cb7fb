package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, brokers and the outbox return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: row does not exist in the store
//   - ErrConflict: row already exists, or its revision moved under a compare-and-swap
//   - ErrInvalidState: entity in the wrong state for the requested operation
//   - ErrUnavailable: broker or backing store temporarily unreachable
//
// Validation failures belong to pkg/domain-errors, not here.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
