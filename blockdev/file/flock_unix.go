/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Apr 12 13:02:44 2018 mstenber
 * Last modified: Thu Apr 12 13:11:30 2018 mstenber
 * Edit time:     6 min
 *
 */

//go:build unix

package file

import (
	"errors"
	"os"

	"github.com/fingon/go-sfs/blockdev"
	"golang.org/x/sys/unix"
)

// lockFile takes exclusive lock; it is released when f is closed.
func lockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return blockdev.ErrBusy
	}
	return err
}
