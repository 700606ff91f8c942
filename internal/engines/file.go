package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/internal/secure"
	"github.com/systmms/secretref/pkg/secrets"
)

// FileEngine reads secrets from local files, typically mounted by an
// orchestrator (Kubernetes secret volumes, Docker secrets).
//
// Parameters: f path is required; k extracts a key from a YAML or JSON file.
// With a configured root, paths are resolved inside it.
type FileEngine struct {
	id     string
	fs     billy.Filesystem
	rooted bool
	logger *logging.Logger
}

// FileEngineOption is a functional option for configuring FileEngine
type FileEngineOption func(*FileEngine)

// WithFileSystem sets the filesystem files are read from (for testing)
func WithFileSystem(fs billy.Filesystem) FileEngineOption {
	return func(e *FileEngine) {
		e.fs = fs
		e.rooted = true
	}
}

// NewFileEngine creates a file engine
func NewFileEngine(id string, cfg map[string]interface{}, logger *logging.Logger, opts ...FileEngineOption) *FileEngine {
	if logger == nil {
		logger = logging.Discard()
	}
	e := &FileEngine{
		id:     id,
		logger: logger,
	}
	root := stringOption(cfg, "root")
	e.rooted = root != ""
	if !e.rooted {
		root = string(filepath.Separator)
	}
	e.fs = osfs.New(root)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFileEngineFactory creates a file engine factory
func NewFileEngineFactory(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error) {
	return NewFileEngine(id, cfg, logger), nil
}

// Identifier returns the engine id
func (e *FileEngine) Identifier() string {
	return e.id
}

// Validate checks the reference parameters
func (e *FileEngine) Validate(params secrets.Params) error {
	if err := params.Require(e.id, "f"); err != nil {
		return err
	}
	if err := params.AtMostOnce(e.id, "k"); err != nil {
		return err
	}
	if path, _ := params.Get("f"); path == "" {
		return secrets.Invalidf("Secret engine %s requires a non-empty parameter f", e.id)
	}
	return nil
}

// Decrypt reads the file and optionally extracts a key from it
func (e *FileEngine) Decrypt(_ context.Context, params secrets.Params) (string, error) {
	path, _ := params.Get("f")
	key, hasKey := params.Get("k")

	// Without a root, relative paths are relative to the working directory.
	if !e.rooted && !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", dserrors.EngineError(e.id, TypeFile, "fetch", err)
		}
		path = abs
	}

	e.logger.Debug("Reading secret file for engine %s", e.id)
	f, err := e.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", dserrors.EngineError(e.id, TypeFile, "fetch", fmt.Errorf("secret file not found"))
		}
		return "", dserrors.EngineError(e.id, TypeFile, "fetch", err)
	}
	defer func() { _ = f.Close() }()

	payload, err := readSecret(f)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeFile, "read file", err)
	}
	defer secure.Wipe(payload)

	value, err := selectKey(payload, key, hasKey)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeFile, "extract key", err)
	}
	return value, nil
}
