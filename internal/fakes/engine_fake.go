package fakes

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/systmms/secretref/pkg/secrets"
)

// FakeEngine is a configurable secrets.Engine.
//
// By default it accepts any parameters and decrypts every reference to the
// empty string. Values can be set globally or per parameter set, and
// failures injected for Validate and Decrypt.
//
//	engine := fakes.NewFakeEngine("s3").
//	    WithValue("test").
//	    WithDecryptError(errors.New("bucket unavailable"))
type FakeEngine struct {
	id string

	mu            sync.RWMutex
	value         string
	values        map[string]string // encoded params -> value
	validateErr   error
	decryptErr    error
	decryptDelay  time.Duration
	validateCalls int
	decryptCalls  int
	lastParams    secrets.Params
}

var _ secrets.Engine = (*FakeEngine)(nil)

// NewFakeEngine creates a fake engine with the given identifier.
func NewFakeEngine(id string) *FakeEngine {
	return &FakeEngine{
		id:     id,
		values: make(map[string]string),
	}
}

// WithValue sets the value returned for every reference.
func (f *FakeEngine) WithValue(value string) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
	return f
}

// WithValueFor sets the value returned when the parameters encode as params,
// e.g. "paramName:paramValue".
func (f *FakeEngine) WithValueFor(params, value string) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[params] = value
	return f
}

// WithValidateError makes Validate fail with err.
func (f *FakeEngine) WithValidateError(err error) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateErr = err
	return f
}

// WithDecryptError makes Decrypt fail with err.
func (f *FakeEngine) WithDecryptError(err error) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decryptErr = err
	return f
}

// WithDecryptDelay simulates backend latency. Decrypt honours ctx while
// waiting.
func (f *FakeEngine) WithDecryptDelay(d time.Duration) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decryptDelay = d
	return f
}

// Identifier returns the engine id.
func (f *FakeEngine) Identifier() string {
	return f.id
}

// Validate records the call and returns the configured error.
func (f *FakeEngine) Validate(params secrets.Params) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateCalls++
	f.lastParams = params
	return f.validateErr
}

// Decrypt records the call and returns the configured value or error.
func (f *FakeEngine) Decrypt(ctx context.Context, params secrets.Params) (string, error) {
	f.mu.Lock()
	f.decryptCalls++
	f.lastParams = params
	delay := f.decryptDelay
	err := f.decryptErr
	value, ok := f.values[encodeParams(params)]
	if !ok {
		value = f.value
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// ValidateCalls returns how many times Validate ran.
func (f *FakeEngine) ValidateCalls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.validateCalls
}

// DecryptCalls returns how many times Decrypt ran.
func (f *FakeEngine) DecryptCalls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.decryptCalls
}

// LastParams returns the parameters of the most recent call.
func (f *FakeEngine) LastParams() secrets.Params {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastParams
}

func encodeParams(params secrets.Params) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Key + ":" + p.Value
	}
	return strings.Join(parts, ",")
}
