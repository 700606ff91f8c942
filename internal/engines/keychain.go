package engines

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/pkg/secrets"
)

// KeychainEngine reads secrets from the OS keychain (macOS Keychain, Linux
// Secret Service, Windows Credential Manager) through go-keyring.
//
// Parameters: s service and a account are required. A configured
// service_prefix is prepended to s.
type KeychainEngine struct {
	id            string
	servicePrefix string
	logger        *logging.Logger
}

// NewKeychainEngine creates a keychain engine
func NewKeychainEngine(id string, cfg map[string]interface{}, logger *logging.Logger) *KeychainEngine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &KeychainEngine{
		id:            id,
		servicePrefix: stringOption(cfg, "service_prefix"),
		logger:        logger,
	}
}

// NewKeychainEngineFactory creates a keychain engine factory
func NewKeychainEngineFactory(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error) {
	return NewKeychainEngine(id, cfg, logger), nil
}

// Identifier returns the engine id
func (e *KeychainEngine) Identifier() string {
	return e.id
}

// Validate checks the reference parameters
func (e *KeychainEngine) Validate(params secrets.Params) error {
	return params.Require(e.id, "s", "a")
}

// Decrypt looks the item up in the keychain
func (e *KeychainEngine) Decrypt(_ context.Context, params secrets.Params) (string, error) {
	service, _ := params.Get("s")
	account, _ := params.Get("a")

	e.logger.Debug("Reading keychain item for engine %s", e.id)
	secret, err := keyring.Get(e.servicePrefix+service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", dserrors.EngineError(e.id, TypeKeychain, "fetch", fmt.Errorf("keychain item not found"))
		}
		return "", dserrors.EngineError(e.id, TypeKeychain, "fetch", err)
	}
	return secret, nil
}
