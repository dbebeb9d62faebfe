/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sat Dec 30 13:41:33 2017 mstenber
 * Last modified: Mon Apr  9 10:12:51 2018 mstenber
 * Edit time:     118 min
 *
 */

// mlog is maybe-log. It is a small wrapper of standard 'log' used by
// all go-sfs packages for tracing:
//
// - environment-variable (MLOG) and 'flag' (-mlog) based selection of
// what to print, by regular expression matched against the file tag
// given to Printf2 (or the caller source file for Printf); what is not
// printed costs next to nothing (by default, everything is off)
//
// - call stack depth is used to indent the output automatically, so
// nested block device / allocator calls are easy to follow
//
// - MLOG_GID=1 prefixes each line with the goroutine id
package mlog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fingon/go-sfs/util/gid"
)

var logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)

const (
	stateUninitialized int32 = iota
	stateInitializing
	stateDisabled
	stateEnabled
)

// status is accessed atomically; everything below mutex only with
// mutex held.
var status int32 = stateUninitialized

var mutex sync.Mutex

var flagPattern *string
var pattern string
var patternRegexp *regexp.Regexp
var tag2Debug map[string]bool
var minDepth int
var callers []uintptr
var dumpGids bool

const maxDepth = 100

func init() {
	flagPattern = flag.String("mlog", "", "Enable logging based on the given file tag regular expression")
	Reset()
}

// Reset returns the module to its default state; the first subsequent
// log call re-reads MLOG from the environment.
func Reset() {
	mutex.Lock()
	defer mutex.Unlock()
	atomic.StoreInt32(&status, stateUninitialized)
	minDepth = maxDepth
	callers = make([]uintptr, maxDepth)
}

// IsEnabled can be used to check if mlog is in use at all before
// doing something expensive.
func IsEnabled() bool {
	st := atomic.LoadInt32(&status)
	if st == stateUninitialized {
		mutex.Lock()
		initialize()
		mutex.Unlock()
		st = atomic.LoadInt32(&status)
	}
	return st == stateEnabled
}

// SetLogger overrides the logger used for output. The returned undo
// function restores the previous one.
func SetLogger(l *log.Logger) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	oldLogger := logger
	logger = l
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = oldLogger
	}
}

// SetPattern sets the pattern by hand, overriding the environment and
// flag provided ones. The returned undo function restores the previous
// pattern.
func SetPattern(p string) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	oldPattern := pattern
	initializeWithPattern(p)
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		initializeWithPattern(oldPattern)
	}
}

func initializeWithPattern(p string) {
	pattern = p
	if p == "" {
		atomic.StoreInt32(&status, stateDisabled)
		return
	}
	patternRegexp = regexp.MustCompile(p)
	tag2Debug = make(map[string]bool)
	atomic.StoreInt32(&status, stateEnabled)
}

// initialize must be called with mutex held.
func initialize() {
	if !atomic.CompareAndSwapInt32(&status, stateUninitialized, stateInitializing) {
		return
	}
	p := os.Getenv("MLOG")
	if flagPattern != nil && *flagPattern != "" {
		p = *flagPattern
	}
	dumpGids = os.Getenv("MLOG_GID") != ""
	initializeWithPattern(p)
}

// Printf is drop-in replacement of log.Printf. It uses the caller's
// source file as the tag, which costs a runtime.Caller per call when
// mlog is enabled at all; Printf2 avoids that.
func Printf(format string, args ...interface{}) {
	if atomic.LoadInt32(&status) == stateDisabled {
		return
	}
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	Printf2(file, format, args...)
}

// Printf2 logs if the given tag matches the current pattern. The tag is
// by convention the package path + file name without suffix, e.g.
// "fs/alloc".
func Printf2(tag string, format string, args ...interface{}) {
	st := atomic.LoadInt32(&status)
	if st == stateDisabled {
		return
	}
	mutex.Lock()
	defer mutex.Unlock()
	if st < stateDisabled {
		initialize()
		if atomic.LoadInt32(&status) != stateEnabled {
			return
		}
	}
	debug, ok := tag2Debug[tag]
	if !ok {
		debug = patternRegexp.MatchString(tag)
		tag2Debug[tag] = debug
	}
	if !debug {
		return
	}
	depth := runtime.Callers(1, callers)
	if depth < minDepth {
		minDepth = depth
	}
	depth -= minDepth
	if depth > 0 {
		format = strings.Repeat(".", depth) + format
	}
	if dumpGids {
		format = fmt.Sprintf("%8d %s", gid.GetGoroutineID(), format)
	}
	logger.Printf(format, args...)
}

// Panicf logs unconditionally and panics; used for internal states
// that should be impossible.
func Panicf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	mutex.Lock()
	l := logger
	mutex.Unlock()
	l.Output(2, s)
	panic(s)
}
