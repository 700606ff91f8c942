package secure

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type failingWriter struct {
	err error
	n   int
}

func (w failingWriter) Write(p []byte) (int, error) {
	return w.n, w.err
}

func TestWriteSecret(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{name: "plain text", value: "my-secret-password"},
		{name: "multi line pem", value: "-----BEGIN KEY-----\nabc\n-----END KEY-----\n"},
		{name: "empty value", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			if err := WriteSecret(&out, tt.value); err != nil {
				t.Fatalf("WriteSecret() error = %v", err)
			}
			if out.String() != tt.value {
				t.Errorf("WriteSecret() wrote %d bytes, want %d", out.Len(), len(tt.value))
			}
		})
	}
}

func TestWriteSecretPropagatesErrors(t *testing.T) {
	t.Parallel()

	diskFull := errors.New("no space left on device")
	if err := WriteSecret(failingWriter{err: diskFull}, "secret"); !errors.Is(err, diskFull) {
		t.Errorf("WriteSecret() error = %v, want %v", err, diskFull)
	}

	if err := WriteSecret(failingWriter{n: 2}, "secret"); !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("WriteSecret() error = %v, want io.ErrShortWrite", err)
	}
}

func TestWipe(t *testing.T) {
	t.Parallel()

	b := []byte("sensitive")
	Wipe(b)
	for i, c := range b {
		if c != 0 {
			t.Fatalf("byte %d not wiped", i)
		}
	}
}
