/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Apr 13 09:02:11 2018 mstenber
 * Last modified: Fri Apr 13 10:15:40 2018 mstenber
 * Edit time:     37 min
 *
 */

package fs

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fingon/go-sfs/blockdev"
)

var (
	ErrNotFound         = errors.New("file not found")
	ErrAlreadyExists    = errors.New("file already exists")
	ErrInvalidHandle    = errors.New("invalid file handle")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrBusy             = errors.New("file is open")
	ErrOutOfSpace       = errors.New("out of space")
	ErrNoFreeDescriptor = errors.New("no free file descriptor")
	ErrAlreadyMounted   = errors.New("already mounted")
	ErrNotMounted       = errors.New("not mounted")

	// ErrCorrupt is returned when the on-disk state violates the
	// file system invariants (or the password is wrong).
	ErrCorrupt = errors.New("file system corrupt")
)

// OpError is the error type returned by all operations. Err is one of
// the sentinel errors above, possibly wrapping the underlying cause;
// use errors.Is to check for them.
type OpError struct {
	Op     string
	Name   string
	Handle Handle
	Err    error
}

func (e *OpError) Error() string {
	s := "sfs: " + e.Op
	if e.Name != "" {
		s += " " + strconv.Quote(e.Name)
	}
	if e.Handle != NoHandle {
		s += fmt.Sprintf(" (handle %d)", e.Handle)
	}
	return s + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func newError(op, name string, h Handle, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Name: name, Handle: h, Err: translateError(err)}
}

func nameError(op, name string, err error) error {
	return newError(op, name, NoHandle, err)
}

func handleError(op string, h Handle, err error) error {
	return newError(op, "", h, err)
}

// translateError maps block device errors to the file system ones.
func translateError(err error) error {
	switch {
	case errors.Is(err, blockdev.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, blockdev.ErrBusy):
		return fmt.Errorf("%w: %w", ErrAlreadyMounted, err)
	case errors.Is(err, blockdev.ErrInvalidName), errors.Is(err, blockdev.ErrNotStore):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return err
}

func corruptf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}
