package service

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateIdentifier = errors.New("email or phone already registered")
	ErrInvalidCredentials  = errors.New("invalid identifier or password")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidImageFormat  = errors.New("unsupported image format")
	ErrInvalidDocument     = errors.New("unsupported document format")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrConflict            = errors.New("conflict")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token has expired")
)
