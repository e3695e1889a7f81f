package storage

import "errors"

var (
	ErrCorruptFile = errors.New("corrupt storage file")
)
