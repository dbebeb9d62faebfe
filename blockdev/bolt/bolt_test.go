/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Apr 12 14:22:40 2018 mstenber
 * Last modified: Thu Apr 12 14:25:01 2018 mstenber
 * Edit time:     2 min
 *
 */

package bolt

import (
	"path/filepath"
	"testing"

	"github.com/fingon/go-sfs/blockdev/blockdevtest"
)

func TestBolt(t *testing.T) {
	t.Parallel()
	name := filepath.Join(t.TempDir(), "disk.db")
	blockdevtest.ProdBackend(t, NewBoltBackend(), name)
}
