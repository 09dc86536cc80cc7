package domain

import "errors"

// ErrAlreadyExists is returned by stores when a record for the number is
// already committed. The first writer wins.
var ErrAlreadyExists = errors.New("record already exists")

// ErrNotFound is returned by stores when no record exists for the number.
var ErrNotFound = errors.New("record not found")
