package fakes

import (
	"os"
	"syscall"

	"github.com/go-git/go-billy/v5"
)

// FaultyFS wraps a billy.Filesystem and injects errors into files opened for
// writing. Reads and directory operations pass through.
//
//	fs := fakes.NewFaultyFS(memfs.New()).FailWrites(syscall.ENOSPC)
type FaultyFS struct {
	billy.Filesystem
	openErr  error
	writeErr error
	closeErr error
}

// NewFaultyFS wraps fs without injecting any faults.
func NewFaultyFS(fs billy.Filesystem) *FaultyFS {
	return &FaultyFS{Filesystem: fs}
}

// DiskFull makes every write fail with ENOSPC.
func (f *FaultyFS) DiskFull() *FaultyFS {
	return f.FailWrites(&os.PathError{Op: "write", Path: "secret", Err: syscall.ENOSPC})
}

// FailOpen makes OpenFile fail with err for writable files.
func (f *FaultyFS) FailOpen(err error) *FaultyFS {
	f.openErr = err
	return f
}

// FailWrites makes Write fail with err after the file has been created.
func (f *FaultyFS) FailWrites(err error) *FaultyFS {
	f.writeErr = err
	return f
}

// FailClose makes Close fail with err after closing the underlying file.
func (f *FaultyFS) FailClose(err error) *FaultyFS {
	f.closeErr = err
	return f
}

// Create opens a file for writing through OpenFile.
func (f *FaultyFS) Create(filename string) (billy.File, error) {
	return f.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// OpenFile opens the file on the wrapped filesystem and wraps writable
// handles.
func (f *FaultyFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0
	if writable && f.openErr != nil {
		return nil, f.openErr
	}
	file, err := f.Filesystem.OpenFile(filename, flag, perm)
	if err != nil || !writable {
		return file, err
	}
	return &faultyFile{File: file, writeErr: f.writeErr, closeErr: f.closeErr}, nil
}

type faultyFile struct {
	billy.File
	writeErr error
	closeErr error
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.File.Write(p)
}

func (f *faultyFile) Close() error {
	err := f.File.Close()
	if f.closeErr != nil {
		return f.closeErr
	}
	return err
}
