package internal

import "errors"

var (
	// ErrEmptyQuery rejects empty or whitespace-only query text.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrInvalidTopK rejects zero or negative top-k requests.
	ErrInvalidTopK = errors.New("top_k must be positive")

	// ErrDimensionMismatch marks a vector whose length does not match the
	// index dimension. During construction this is fatal.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNoValidChunks means validation left nothing to index.
	ErrNoValidChunks = errors.New("no valid chunks to index")

	// ErrNoExcerpts means answer synthesis was asked to run without any
	// non-blank excerpt.
	ErrNoExcerpts = errors.New("no valid content chunks provided")

	// ErrNoProviders means the synthesizer has an empty provider chain.
	ErrNoProviders = errors.New("no answer providers configured")
)
