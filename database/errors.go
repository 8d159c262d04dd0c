package database

import (
	"errors"
	"fmt"

	"github.com/stupid-simple/cloudbackup/storage"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrReference   = errors.New("dangling reference")
	ErrJobNotFound = errors.New("backup job not found")
	ErrRunNotFound = errors.New("backup run not found")
	ErrRunFinished = errors.New("backup run already finished")

	// ErrProviderNotFound matches storage.ErrNotFound.
	ErrProviderNotFound = fmt.Errorf("storage provider %w", storage.ErrNotFound)
)
