package services

import "errors"

var (
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrMessageTooLong = errors.New("message too long")
	ErrNotFound       = errors.New("not found")
)
