/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Apr 12 13:03:10 2018 mstenber
 * Last modified: Thu Apr 12 13:03:40 2018 mstenber
 * Edit time:     0 min
 *
 */

//go:build !unix

package file

import "os"

// Advisory locking is only available on unix; elsewhere the mount
// guard in fs is all there is.
func lockFile(f *os.File) error {
	return nil
}
