package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrConflict          = errors.New("concurrent modification conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBatchComplete     = errors.New("batch already complete")
	ErrProviderDisabled  = errors.New("provider disabled")
	ErrNotRegistered     = errors.New("provider not registered")
)
