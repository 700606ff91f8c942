// Package resolve turns secret references into values or secret files.
package resolve

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/pkg/secrets"
)

// typedRegistry is implemented by registries that know the factory type of
// each engine, such as *engines.Registry.
type typedRegistry interface {
	Type(id string) string
}

// Resolver resolves references against an engine registry.
//
// A Resolver holds no mutable state of its own and is safe for concurrent
// use once created.
type Resolver struct {
	registry  secrets.Registry
	logger    *logging.Logger
	fs        billy.Filesystem
	secretDir string
	metrics   *Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. Only engine ids and redacted references are
// logged.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSecretDir sets the directory secret files are created in.
func WithSecretDir(dir string) Option {
	return func(r *Resolver) {
		if dir != "" {
			r.secretDir = dir
		}
	}
}

// WithSecretFS sets the filesystem and directory secret files are created
// in. dir is interpreted by fs.
func WithSecretFS(fs billy.Filesystem, dir string) Option {
	return func(r *Resolver) {
		r.fs = fs
		if dir != "" {
			r.secretDir = dir
		}
	}
}

// WithMetrics records every resolution in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New creates a resolver. Secret files go to os.TempDir() on the local
// filesystem unless configured otherwise.
func New(registry secrets.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry:  registry,
		logger:    logging.Discard(),
		fs:        osfs.New(string(filepath.Separator)),
		secretDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if abs, err := filepath.Abs(r.secretDir); err == nil {
		r.secretDir = abs
	}
	return r
}

// SecretDir returns the absolute directory secret files are created in.
func (r *Resolver) SecretDir() string {
	return r.secretDir
}

// Decrypt resolves raw to its plaintext value.
//
// Syntax errors, unknown engines and rejected parameters fail with
// secrets.InvalidFormatError before the engine is asked to decrypt. Engine
// failures are returned as secrets.DecryptionError.
func (r *Resolver) Decrypt(ctx context.Context, raw string) (string, error) {
	start := time.Now()
	ref, engine, err := r.prepare(raw)
	if err != nil {
		r.metrics.observe(engineLabel(ref, engine), OperationDecrypt, err, start)
		return "", err
	}

	value, err := r.decrypt(ctx, ref, engine)
	r.metrics.observe(ref.EngineID, OperationDecrypt, err, start)
	if err != nil {
		return "", err
	}
	return value, nil
}

// DecryptToFile resolves raw and writes the value to a new file in the
// secret directory, returning its absolute path.
//
// The file is created with mode 0600 and never overwrites an existing file.
// If anything fails after creation the file is removed. Callers own the
// file and are responsible for deleting it.
func (r *Resolver) DecryptToFile(ctx context.Context, raw string) (string, error) {
	start := time.Now()
	ref, engine, err := r.prepare(raw)
	if err != nil {
		r.metrics.observe(engineLabel(ref, engine), OperationDecryptToFile, err, start)
		return "", err
	}

	value, err := r.decrypt(ctx, ref, engine)
	if err != nil {
		r.metrics.observe(ref.EngineID, OperationDecryptToFile, err, start)
		return "", err
	}

	path, err := r.writeSecretFile(ref.EngineID, value)
	r.metrics.observe(ref.EngineID, OperationDecryptToFile, err, start)
	if err != nil {
		return "", err
	}
	r.metrics.secretFileWritten(ref.EngineID)
	r.logger.Debug("Wrote secret file for %s", ref)
	return path, nil
}

// ResolveValue resolves value according to its prefix: encrypted: values
// are decrypted, encryptedFile: values become secret file paths and anything
// else is returned unchanged.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	switch {
	case secrets.IsEncryptedFile(value):
		return r.DecryptToFile(ctx, value)
	case secrets.IsEncryptedSecret(value):
		return r.Decrypt(ctx, value)
	default:
		return value, nil
	}
}

// Check parses raw, looks up its engine and validates the parameters
// without decrypting anything.
func (r *Resolver) Check(raw string) (secrets.Reference, error) {
	ref, _, err := r.prepare(raw)
	if err != nil {
		return secrets.Reference{}, err
	}
	return ref, nil
}

// prepare runs the parse, lookup and validate steps shared by every
// operation.
func (r *Resolver) prepare(raw string) (secrets.Reference, secrets.Engine, error) {
	ref, err := secrets.Parse(raw)
	if err != nil {
		return secrets.Reference{}, nil, err
	}

	engine, ok := r.registry.GetEngine(ref.EngineID)
	if !ok {
		r.logger.Debug("No engine registered for %s", ref)
		return ref, nil, secrets.EngineNotFoundError(ref.EngineID)
	}

	if err := engine.Validate(ref.Params); err != nil {
		r.logger.Debug("Engine %s rejected %s", ref.EngineID, ref)
		return ref, engine, err
	}
	return ref, engine, nil
}

func (r *Resolver) decrypt(ctx context.Context, ref secrets.Reference, engine secrets.Engine) (string, error) {
	r.logger.Debug("Decrypting %s", ref)
	value, err := engine.Decrypt(ctx, ref.Params)
	if err != nil {
		r.logger.Debug("Engine %s failed to decrypt %s", ref.EngineID, ref)
		return "", dserrors.EngineError(ref.EngineID, r.engineType(ref.EngineID), "decrypt", err)
	}
	return value, nil
}

func (r *Resolver) engineType(id string) string {
	if typed, ok := r.registry.(typedRegistry); ok {
		return typed.Type(id)
	}
	return ""
}

// engineLabel bounds metric cardinality to registered engine ids.
func engineLabel(ref secrets.Reference, engine secrets.Engine) string {
	if engine == nil {
		return UnregisteredEngine
	}
	return ref.EngineID
}
