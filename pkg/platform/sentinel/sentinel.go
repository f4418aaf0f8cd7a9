package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and storage composition
// layers return these (optionally wrapped) so services can translate them into
// API errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record or schema does not exist in store
// - ErrConflict: record already exists
// - ErrInvalidState: record in wrong state for requested operation (e.g. deleted)
// - ErrUnavailable: no storage backend able to serve the request
//
// For validation errors (bad input, missing fields), use pkg/apierrors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
