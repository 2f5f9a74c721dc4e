package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the pipeline.
var (
	ErrMissingConfig     = errors.New("missing required configuration")
	ErrNoChunks          = errors.New("document produced no chunks")
	ErrEmbeddingMismatch = errors.New("embedding model does not match collection")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrQuestionTooLong   = errors.New("question too long")
)

// ConfigError lists every required setting that was not provided.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", ErrMissingConfig, strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Unwrap() error { return ErrMissingConfig }

// MismatchError reports a collection written with a different embedding tag
// or dimension than the one in use.
type MismatchError struct {
	Collection string
	Stored     string
	Configured string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: collection %q was written with %q, configured %q",
		ErrEmbeddingMismatch, e.Collection, e.Stored, e.Configured)
}

func (e *MismatchError) Unwrap() error { return ErrEmbeddingMismatch }
