/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Thu Jan  4 12:21:40 2018 mstenber
 * Last modified: Tue Apr 10 13:51:19 2018 mstenber
 * Edit time:     19 min
 *
 */

package util

import "sync"

// MutexLocked is sync.Mutex with convenience features (just defer
// x.Locked()()).
type MutexLocked sync.Mutex

func (self *MutexLocked) Locked() (unlock func()) {
	mut := (*sync.Mutex)(self)
	mut.Lock()
	return func() {
		mut.Unlock()
	}
}
