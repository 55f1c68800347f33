package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrEmptyName is returned when an upsert is given a blank natural key.
var ErrEmptyName = errors.New("storage: empty name")
