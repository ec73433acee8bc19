package domain

import "errors"

// ErrDuplicateGame is returned when a session has already been archived.
var ErrDuplicateGame = errors.New("chess game already exists")
