// Package merkle builds the deterministic commitment root over a scoring
// snapshot.
package merkle

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
)

// Entry is one leaf input: a consolidation key and its boosted total.
type Entry struct {
	Key   string
	Value int64
}

// Root computes the Merkle root over the entries. Entries with non-positive
// values are dropped; the rest are sorted by (value desc, key asc) so any
// permutation of the same input set yields the identical root. Leaves hash
// "key:value"; levels pair adjacent hashes and promote an odd trailing hash
// unchanged to the next level.
func Root(entries []Entry) [32]byte {
	filtered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Value > 0 {
			filtered = append(filtered, e)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Value != filtered[j].Value {
			return filtered[i].Value > filtered[j].Value
		}
		return filtered[i].Key < filtered[j].Key
	})

	if len(filtered) == 0 {
		return [32]byte{}
	}

	level := make([][32]byte, 0, len(filtered))
	for _, e := range filtered {
		leaf := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%d", e.Key, e.Value)))
		level = append(level, leaf)
	}

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, crypto.Keccak256Hash(level[i][:], level[i+1][:]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}
