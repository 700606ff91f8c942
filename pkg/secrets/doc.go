// Package secrets defines the contract between secretref and its secret engines.
//
// A secret reference is an opaque string embedded in configuration that names
// an engine and the parameters that engine needs to produce a secret value:
//
//	encrypted:s3!r:us-west-2,b:my-bucket,f:prod/app.yml,k:db.password
//
// The reference is parsed by Parse into a Reference. The engine id ("s3") is
// looked up in a Registry and the parameters are handed to the Engine, which
// validates them and performs the decryption. Consumers never learn which
// backend produced the value.
//
// # Reference Syntax
//
//	reference := prefix engineId "!" paramList
//	prefix    := "encrypted:" | "encryptedFile:"
//	paramList := param ("," param)*
//	param     := key ":" value
//
// Engine ids, keys and values are non-empty and may not contain ':', '!' or
// ','. The "encryptedFile:" prefix asks for the value to be materialized as a
// file, for consumers such as TLS loaders that need a path.
//
// # Error Handling
//
// Two error kinds cross this boundary:
//
//   - InvalidFormatError for malformed references, unknown engines and
//     parameters an engine rejects. Its message never contains secret values
//     and is safe to show to users.
//   - DecryptionError for backend failures and secret file failures. Its
//     message names the engine and the failing operation; the underlying
//     cause is only reachable through errors.Unwrap.
//
// Both can be matched with errors.Is against ErrInvalidFormat and
// ErrDecryptionFailed.
//
// # Implementing an Engine
//
//	type envEngine struct{}
//
//	func (envEngine) Identifier() string { return "env" }
//
//	func (envEngine) Validate(params secrets.Params) error {
//	    return params.Require("env", "n")
//	}
//
//	func (envEngine) Decrypt(ctx context.Context, params secrets.Params) (string, error) {
//	    name, _ := params.Get("n")
//	    return os.Getenv(name), nil
//	}
//
// Engines must be safe for concurrent use; the resolver does not serialize
// calls to the same engine.
package secrets
