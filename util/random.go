/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Fri Mar 16 13:56:39 2018 mstenber
 * Last modified: Mon Apr 16 09:30:55 2018 mstenber
 * Edit time:     11 min
 *
 */

package util

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"
)

// SeedEnv names the environment variable that fixes the seed of
// randomized tests.
const SeedEnv = "SEED"

// Seed returns the value of SeedEnv, or current time if it is unset.
func Seed() (int64, error) {
	s := os.Getenv(SeedEnv)
	if s == "" {
		return time.Now().UnixNano(), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", SeedEnv, s, err)
	}
	return v, nil
}

// GetSeededRng returns random number generator for randomized tests.
// The seed is logged so that failures can be reproduced.
func GetSeededRng() *rand.Rand {
	seed, err := Seed()
	if err != nil {
		log.Panic(err)
	}
	log.Printf("Seed: %v (use %s= to fix)", seed, SeedEnv)
	return rand.New(rand.NewSource(seed))
}
