package secrets_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/secretref/pkg/secrets"
)

func TestEngineNotFoundError(t *testing.T) {
	t.Parallel()

	err := secrets.EngineNotFoundError("does-not-exist")
	assert.Equal(t, "Secret Engine does not exist: does-not-exist", err.Error())
	assert.True(t, errors.Is(err, secrets.ErrInvalidFormat))
	assert.False(t, errors.Is(err, secrets.ErrDecryptionFailed))
}

func TestDecryptionErrorHidesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("GetObject s3://private-bucket/prod.yml: AccessDenied")
	err := secrets.DecryptionError{
		Engine:     "s3",
		Op:         "fetch",
		Suggestion: "check IAM permissions",
		Err:        cause,
	}

	assert.Equal(t, "failed to decrypt secret with engine s3: fetch failed (check IAM permissions)", err.Error())
	assert.NotContains(t, err.Error(), "private-bucket")
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, secrets.ErrDecryptionFailed))

	wrapped := fmt.Errorf("resolving config: %w", err)
	var de secrets.DecryptionError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "s3", de.Engine)
}

func TestDecryptionErrorMinimal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "failed to decrypt secret", secrets.DecryptionError{}.Error())
	assert.Nil(t, secrets.DecryptionError{}.Unwrap())
}
