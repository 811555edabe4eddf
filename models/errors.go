package models

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrAlreadyExists           = errors.New("already exists")
	ErrNoDriverAvailable       = errors.New("no driver available")
	ErrInvalidTransition       = errors.New("invalid transition")
	ErrDriverNoLongerAvailable = errors.New("driver no longer available")
	ErrInvalidRequest          = errors.New("invalid request")
)
