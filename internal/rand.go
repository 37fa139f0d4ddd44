// Copyright 2025-2026 The ai-token-exo-bridge Authors
//
// Portions derived from github.com/bufbuild/httplb,
// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package internal

import (
	"hash/maphash"
	"math/rand"
	"time"
)

// NewRand returns a properly seeded *rand.Rand. The seed comes from the
// "hash/maphash" package, which is lock-free and safe for concurrent use.
//
// The returned value is not thread-safe.
func NewRand() *rand.Rand {
	var hash maphash.Hash
	return rand.New(rand.NewSource(int64(hash.Sum64()))) //nolint:gosec // don't need cryptographic RNG
}

// Jitter returns a random duration in [0, limit). It returns zero if limit
// is not positive.
func Jitter(rnd *rand.Rand, limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rnd.Int63n(int64(limit)))
}
