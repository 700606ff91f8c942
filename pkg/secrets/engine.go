package secrets

import "context"

// Engine is a pluggable backend that turns reference parameters into a
// secret value.
//
// Implementations must be thread-safe. The resolver calls Validate before
// every Decrypt and never calls Decrypt with parameters Validate rejected.
type Engine interface {
	// Identifier returns the stable id used in references, e.g. "s3".
	// It must not change for the lifetime of the process.
	Identifier() string

	// Validate checks that params carry everything this engine needs.
	// It returns an InvalidFormatError naming the offending keys.
	// Implementations must not perform I/O here.
	Validate(params Params) error

	// Decrypt fetches or decrypts the secret described by params.
	// Backend failures should be returned as DecryptionError; any other
	// error is wrapped in one by the resolver.
	Decrypt(ctx context.Context, params Params) (string, error)
}

// Registry looks up engines by identifier.
//
// A Registry is populated once at startup and read-only afterwards, so
// GetEngine must be safe for concurrent use without locking. A missing
// engine is reported with ok == false rather than an error.
type Registry interface {
	GetEngine(id string) (engine Engine, ok bool)
}
