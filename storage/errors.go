package storage

import "errors"

var (
	ErrNotFound  = errors.New("storage: not found")
	ErrMalformed = errors.New("storage: malformed document")
	ErrImmutable = errors.New("storage: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
