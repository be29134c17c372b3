package merkle

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func TestRootEmpty(t *testing.T) {
	assert.Equal(t, [32]byte{}, Root(nil))
	assert.Equal(t, [32]byte{}, Root([]Entry{{Key: "a", Value: 0}, {Key: "b", Value: -5}}))
}

func TestRootSingleLeaf(t *testing.T) {
	root := Root([]Entry{{Key: "0xaaa", Value: 100}})
	expected := crypto.Keccak256Hash([]byte("0xaaa:100"))
	assert.Equal(t, [32]byte(expected), root)
}

func TestRootPermutationInvariant(t *testing.T) {
	entries := []Entry{
		{Key: "0xaaa", Value: 300},
		{Key: "0xbbb", Value: 100},
		{Key: "0xccc", Value: 200},
		{Key: "0xddd", Value: 100},
	}
	shuffled := []Entry{entries[2], entries[0], entries[3], entries[1]}

	assert.Equal(t, Root(entries), Root(shuffled))
}

func TestRootDropsNonPositive(t *testing.T) {
	withZero := []Entry{
		{Key: "0xaaa", Value: 300},
		{Key: "0xbbb", Value: 0},
	}
	without := []Entry{{Key: "0xaaa", Value: 300}}

	assert.Equal(t, Root(without), Root(withZero))
}

func TestRootOddLeafPromotion(t *testing.T) {
	// Order after sorting: aaa(300), bbb(200), ccc(100). The odd third leaf
	// is promoted unchanged and paired at the next level.
	l1 := crypto.Keccak256Hash([]byte("0xaaa:300"))
	l2 := crypto.Keccak256Hash([]byte("0xbbb:200"))
	l3 := crypto.Keccak256Hash([]byte("0xccc:100"))
	inner := crypto.Keccak256Hash(l1[:], l2[:])
	expected := crypto.Keccak256Hash(inner[:], l3[:])

	root := Root([]Entry{
		{Key: "0xccc", Value: 100},
		{Key: "0xaaa", Value: 300},
		{Key: "0xbbb", Value: 200},
	})
	assert.Equal(t, [32]byte(expected), root)
}

func TestRootValueChangesRoot(t *testing.T) {
	a := Root([]Entry{{Key: "0xaaa", Value: 100}, {Key: "0xbbb", Value: 50}})
	b := Root([]Entry{{Key: "0xaaa", Value: 101}, {Key: "0xbbb", Value: 50}})
	assert.NotEqual(t, a, b)
}
