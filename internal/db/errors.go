package db

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidParent = errors.New("parent comment belongs to another ticket")
)
