package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/secure"
)

const (
	secretFilePrefix = "secret-"
	secretFileSuffix = ".secret"

	// secretFileMode is applied at creation time, never afterwards.
	secretFileMode os.FileMode = 0o600
)

var errUnsafeEngineID = errors.New("engine id cannot be used in a file name")

// secretFileName returns a fresh file name embedding the engine id.
func secretFileName(engineID string) string {
	return secretFilePrefix + engineID + "-" + ulid.Make().String() + secretFileSuffix
}

// writeSecretFile creates a new secret file holding value and returns its
// path. Any failure removes the file and is reported as a
// secrets.DecryptionError.
func (r *Resolver) writeSecretFile(engineID, value string) (path string, err error) {
	// Registries other than *engines.Registry may accept any id.
	if strings.ContainsRune(engineID, '/') || strings.ContainsRune(engineID, filepath.Separator) {
		return "", dserrors.EngineError(engineID, "", "create secret file", errUnsafeEngineID)
	}

	if err := r.fs.MkdirAll(r.secretDir, 0o700); err != nil {
		return "", dserrors.EngineError(engineID, "", "create secret directory", err)
	}

	path = filepath.Join(r.secretDir, secretFileName(engineID))
	f, err := r.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, secretFileMode)
	if err != nil {
		return "", dserrors.EngineError(engineID, "", "create secret file", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rmErr := r.fs.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.logger.Warn("Failed to remove incomplete secret file for engine %s: %v", engineID, rmErr)
		}
		path = ""
	}()

	if err := secure.WriteSecret(f, value); err != nil {
		_ = f.Close()
		return path, dserrors.EngineError(engineID, "", "write secret file", err)
	}
	if err := f.Close(); err != nil {
		return path, dserrors.EngineError(engineID, "", "close secret file", err)
	}
	return path, nil
}
