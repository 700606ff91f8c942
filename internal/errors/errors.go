package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/secretref/pkg/secrets"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// EngineError wraps a backend failure into a secrets.DecryptionError with a
// suggestion derived from the engine type and the cause. The cause text is
// only inspected, never copied into the message.
func EngineError(engineID, engineType, op string, err error) error {
	var de secrets.DecryptionError
	if errors.As(err, &de) {
		return err
	}
	return secrets.DecryptionError{
		Engine:     engineID,
		Op:         op,
		Suggestion: getEngineSuggestion(engineType, err),
		Err:        err,
	}
}

// getEngineSuggestion returns helpful suggestions based on engine type and error
func getEngineSuggestion(engineType string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	switch {
	case strings.HasPrefix(engineType, "aws."):
		if strings.Contains(errStr, "AccessDenied") {
			return "check the IAM permissions of the current AWS identity"
		}
		if strings.Contains(errStr, "NoSuchKey") || strings.Contains(errStr, "NoSuchBucket") ||
			strings.Contains(errStr, "ResourceNotFoundException") || strings.Contains(errStr, "ParameterNotFound") {
			return "verify the region and the secret location in the reference"
		}
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "ExpiredToken") {
			return "configure AWS credentials with 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "Throttling") {
			return "AWS rate limit exceeded, wait a moment and try again"
		}

	case strings.HasPrefix(engineType, "gcp."):
		if strings.Contains(errStr, "PermissionDenied") {
			return "grant roles/secretmanager.secretAccessor to the current identity"
		}
		if strings.Contains(errStr, "NotFound") {
			return "verify the project, secret name and version"
		}
		if strings.Contains(errStr, "could not find default credentials") {
			return "run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS"
		}

	case strings.HasPrefix(engineType, "azure."):
		if strings.Contains(errStr, "Forbidden") || strings.Contains(errStr, "403") {
			return "grant the current identity 'get' permission on the Key Vault secrets"
		}
		if strings.Contains(errStr, "SecretNotFound") || strings.Contains(errStr, "404") {
			return "verify the vault and secret name"
		}
		if strings.Contains(errStr, "DefaultAzureCredential") {
			return "run 'az login' or configure a managed identity"
		}

	case engineType == "vault":
		if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "403") {
			return "check that VAULT_TOKEN is valid and its policy allows reading the path"
		}
		if strings.Contains(errStr, "404") {
			return "verify the mount and path, and the kv_version of the engine"
		}

	case engineType == "keychain":
		if strings.Contains(errStr, "not found") {
			return "verify the service and account names in the keychain"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "the operation timed out, check connectivity or raise --timeout"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "unable to connect, check the network and the engine endpoint"
	}
	if strings.Contains(errStr, "no space left on device") {
		return "free disk space in the secret directory"
	}
	if strings.Contains(errStr, "permission denied") {
		return "check permissions of the secret directory"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	var cfgErr ConfigError
	var invalid secrets.InvalidFormatError
	var decrypt secrets.DecryptionError
	if errors.As(err, &userErr) || errors.As(err, &cfgErr) ||
		errors.As(err, &invalid) || errors.As(err, &decrypt) {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Simplify common technical errors
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
