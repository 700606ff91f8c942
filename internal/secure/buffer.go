package secure

import (
	"io"

	"github.com/awnumar/memguard"
)

// WriteSecret copies value into a locked buffer, writes it to w and wipes
// the buffer before returning, whatever the outcome of the write.
//
// A short write is reported as io.ErrShortWrite.
func WriteSecret(w io.Writer, value string) error {
	if value == "" {
		return nil
	}

	// NewBufferFromBytes wipes the intermediate slice once copied.
	buf := memguard.NewBufferFromBytes([]byte(value))
	defer buf.Destroy()

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return err
	}
	if n != buf.Size() {
		return io.ErrShortWrite
	}
	return nil
}

// Wipe overwrites b with zeroes.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
