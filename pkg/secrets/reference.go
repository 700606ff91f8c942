package secrets

import (
	"sort"
	"strings"
)

const (
	// EncryptedPrefix marks a value that resolves to the decrypted secret.
	EncryptedPrefix = "encrypted:"

	// EncryptedFilePrefix marks a value that resolves to the path of a
	// file holding the decrypted secret.
	EncryptedFilePrefix = "encryptedFile:"

	engineSeparator = "!"
	paramSeparator  = ","
	kvSeparator     = ":"

	// delimiters may not appear inside engine ids, keys or values.
	delimiters = kvSeparator + engineSeparator + paramSeparator

	redacted = "[REDACTED]"
)

// Param is a single key/value pair of a reference.
type Param struct {
	Key   string
	Value string
}

// Params is the ordered parameter list of a reference. Keys may repeat;
// what a repeated key means is up to the engine.
type Params []Param

// Get returns the value of the first parameter named key.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Count returns how many parameters are named key.
func (p Params) Count(key string) int {
	n := 0
	for _, param := range p {
		if param.Key == key {
			n++
		}
	}
	return n
}

// Keys returns the parameter keys in order, including repeats.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, param := range p {
		keys = append(keys, param.Key)
	}
	return keys
}

// Require checks that every key in required is present exactly once.
// The returned error only names keys.
func (p Params) Require(engineID string, required ...string) error {
	var missing, repeated []string
	for _, key := range required {
		switch p.Count(key) {
		case 0:
			missing = append(missing, key)
		case 1:
		default:
			repeated = append(repeated, key)
		}
	}
	if len(missing) > 0 {
		return Invalidf("Secret engine %s is missing required parameters: %s", engineID, strings.Join(missing, ", "))
	}
	if len(repeated) > 0 {
		return Invalidf("Secret engine %s does not accept repeated parameters: %s", engineID, strings.Join(repeated, ", "))
	}
	return nil
}

// AtMostOnce checks that none of keys appears more than once.
func (p Params) AtMostOnce(engineID string, keys ...string) error {
	var repeated []string
	for _, key := range keys {
		if p.Count(key) > 1 {
			repeated = append(repeated, key)
		}
	}
	if len(repeated) > 0 {
		sort.Strings(repeated)
		return Invalidf("Secret engine %s does not accept repeated parameters: %s", engineID, strings.Join(repeated, ", "))
	}
	return nil
}

// Reference is a parsed secret reference. It is only ever built by Parse.
type Reference struct {
	// EngineID names the engine that resolves this reference. Never empty.
	EngineID string

	// Params are handed to the engine untouched.
	Params Params

	// AsFile is set when the reference used the encryptedFile: prefix.
	AsFile bool
}

// Encode serializes the reference back to its textual form.
// The output contains parameter values and must not be logged.
func (r Reference) Encode() string {
	return r.render(false)
}

// String renders the reference with every value redacted, so references can
// be passed to loggers and error messages.
func (r Reference) String() string {
	return r.render(true)
}

// GoString implements fmt.GoStringer so %#v also redacts.
func (r Reference) GoString() string {
	return r.render(true)
}

func (r Reference) render(redact bool) string {
	var b strings.Builder
	if r.AsFile {
		b.WriteString(EncryptedFilePrefix)
	} else {
		b.WriteString(EncryptedPrefix)
	}
	b.WriteString(r.EngineID)
	b.WriteString(engineSeparator)
	for i, param := range r.Params {
		if i > 0 {
			b.WriteString(paramSeparator)
		}
		b.WriteString(param.Key)
		b.WriteString(kvSeparator)
		if redact {
			b.WriteString(redacted)
		} else {
			b.WriteString(param.Value)
		}
	}
	return b.String()
}

// IsEncryptedSecret reports whether s is a reference resolving to a value.
func IsEncryptedSecret(s string) bool {
	return strings.HasPrefix(s, EncryptedPrefix)
}

// IsEncryptedFile reports whether s is a reference resolving to a file path.
func IsEncryptedFile(s string) bool {
	return strings.HasPrefix(s, EncryptedFilePrefix)
}

// IsReference reports whether s uses either reference prefix.
func IsReference(s string) bool {
	return IsEncryptedSecret(s) || IsEncryptedFile(s)
}

// Parse parses raw into a Reference.
//
// Parsing is pure. Errors are InvalidFormatError and describe where the
// input is malformed without repeating any of it.
func Parse(raw string) (Reference, error) {
	var ref Reference
	var body string
	switch {
	case IsEncryptedFile(raw):
		ref.AsFile = true
		body = raw[len(EncryptedFilePrefix):]
	case IsEncryptedSecret(raw):
		body = raw[len(EncryptedPrefix):]
	default:
		return Reference{}, Invalidf("Invalid secret format: reference must start with %q or %q", EncryptedPrefix, EncryptedFilePrefix)
	}

	engineID, paramList, found := strings.Cut(body, engineSeparator)
	if !found {
		return Reference{}, Invalidf("Invalid secret format: missing %q between engine and parameters", engineSeparator)
	}
	if engineID == "" {
		return Reference{}, Invalidf("Invalid secret format: engine identifier is empty")
	}
	if strings.ContainsAny(engineID, delimiters) {
		return Reference{}, Invalidf("Invalid secret format: engine identifier contains a reserved character")
	}
	if paramList == "" {
		return Reference{}, Invalidf("Invalid secret format: no parameters given for engine %s", engineID)
	}
	if strings.Contains(paramList, engineSeparator) {
		return Reference{}, Invalidf("Invalid secret format: parameters contain a reserved character %q", engineSeparator)
	}

	fields := strings.Split(paramList, paramSeparator)
	ref.EngineID = engineID
	ref.Params = make(Params, 0, len(fields))
	for i, field := range fields {
		pos := i + 1
		key, value, ok := strings.Cut(field, kvSeparator)
		switch {
		case field == "":
			return Reference{}, Invalidf("Invalid secret format: parameter %d is empty", pos)
		case !ok:
			return Reference{}, Invalidf("Invalid secret format: parameter %d is not a key:value pair", pos)
		case key == "":
			return Reference{}, Invalidf("Invalid secret format: parameter %d has an empty key", pos)
		case value == "":
			return Reference{}, Invalidf("Invalid secret format: parameter %q has an empty value", key)
		case strings.Contains(value, kvSeparator):
			return Reference{}, Invalidf("Invalid secret format: parameter %q value contains a reserved character %q", key, kvSeparator)
		}
		ref.Params = append(ref.Params, Param{Key: key, Value: value})
	}
	return ref, nil
}
