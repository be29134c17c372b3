package decoder

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	fromAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	toAddr   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	nftAddr  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	txHash   = common.HexToHash("0xabcdef")
)

func addrTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func uintWord(v int64) []byte {
	return common.BigToHash(big.NewInt(v)).Bytes()
}

func erc721Log(tokenID int64) types.Log {
	return types.Log{
		Address:     nftAddr,
		TxHash:      txHash,
		BlockNumber: 100,
		Topics: []common.Hash{
			TopicTransfer,
			addrTopic(fromAddr),
			addrTopic(toAddr),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

func TestDecodeERC721Transfer(t *testing.T) {
	transfers, ok := decodeTransferLog(erc721Log(42))
	require.True(t, ok)
	require.Len(t, transfers, 1)
	assert.Equal(t, fromAddr, transfers[0].From)
	assert.Equal(t, toAddr, transfers[0].To)
	assert.Equal(t, int64(42), transfers[0].TokenID.Int64())
	assert.Equal(t, int64(1), transfers[0].Count)
}

func TestSkipFungibleTransfer(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{TopicTransfer, addrTopic(fromAddr), addrTopic(toAddr)},
		Data:   uintWord(1000),
	}
	_, ok := decodeTransferLog(log)
	assert.False(t, ok)
}

func TestSkipUnknownTopic(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{common.HexToHash("0xdead"), addrTopic(fromAddr)},
	}
	_, ok := decodeTransferLog(log)
	assert.False(t, ok)
}

func TestDecodeTransferSingle(t *testing.T) {
	operator := common.HexToAddress("0x4444444444444444444444444444444444444444")
	log := types.Log{
		Address: nftAddr,
		TxHash:  txHash,
		Topics: []common.Hash{
			TopicTransferSingle,
			addrTopic(operator),
			addrTopic(fromAddr),
			addrTopic(toAddr),
		},
		Data: append(uintWord(7), uintWord(3)...),
	}

	transfers, ok := decodeTransferLog(log)
	require.True(t, ok)
	require.Len(t, transfers, 1)
	assert.Equal(t, int64(7), transfers[0].TokenID.Int64())
	assert.Equal(t, int64(3), transfers[0].Count)
}

func TestDecodeTransferBatch(t *testing.T) {
	operator := common.HexToAddress("0x4444444444444444444444444444444444444444")
	// Layout: idsOffset, valuesOffset, ids len + elems, values len + elems.
	var data []byte
	data = append(data, uintWord(64)...)  // ids array at word 2
	data = append(data, uintWord(160)...) // values array at word 5
	data = append(data, uintWord(2)...)
	data = append(data, uintWord(10)...)
	data = append(data, uintWord(11)...)
	data = append(data, uintWord(2)...)
	data = append(data, uintWord(1)...)
	data = append(data, uintWord(4)...)

	log := types.Log{
		Address: nftAddr,
		TxHash:  txHash,
		Topics: []common.Hash{
			TopicTransferBatch,
			addrTopic(operator),
			addrTopic(fromAddr),
			addrTopic(toAddr),
		},
		Data: data,
	}

	transfers, ok := decodeTransferLog(log)
	require.True(t, ok)
	require.Len(t, transfers, 2)
	assert.Equal(t, int64(10), transfers[0].TokenID.Int64())
	assert.Equal(t, int64(1), transfers[0].Count)
	assert.Equal(t, int64(11), transfers[1].TokenID.Int64())
	assert.Equal(t, int64(4), transfers[1].Count)
}

func TestDecodeTransferBatchMalformedSkipped(t *testing.T) {
	operator := common.HexToAddress("0x4444444444444444444444444444444444444444")
	bigWord := func(v *big.Int) []byte {
		return common.BigToHash(v).Bytes()
	}
	concat := func(words ...[]byte) []byte {
		var out []byte
		for _, w := range words {
			out = append(out, w...)
		}
		return out
	}

	cases := map[string][]byte{
		"offset high bit set": concat(bigWord(new(big.Int).Lsh(big.NewInt(1), 63)), uintWord(160)),
		"offset past data":    concat(uintWord(4096), uintWord(160)),
		"oversized length":    concat(uintWord(64), uintWord(96), bigWord(new(big.Int).Lsh(big.NewInt(1), 40))),
		"truncated elements":  concat(uintWord(64), uintWord(160), uintWord(3), uintWord(10)),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			log := types.Log{
				Address: nftAddr,
				TxHash:  txHash,
				Topics: []common.Hash{
					TopicTransferBatch,
					addrTopic(operator),
					addrTopic(fromAddr),
					addrTopic(toAddr),
				},
				Data: data,
			}
			_, ok := decodeTransferLog(log)
			assert.False(t, ok)
		})
	}
}

func TestParseOrderFulfilledMalformedSkipped(t *testing.T) {
	bigWord := func(v *big.Int) []byte {
		return common.BigToHash(v).Bytes()
	}
	// orderHash, recipient, then two offset words that cannot address the data.
	var data []byte
	data = append(data, uintWord(0)...)
	data = append(data, addrTopic(toAddr).Bytes()...)
	data = append(data, bigWord(new(big.Int).Lsh(big.NewInt(1), 63))...)
	data = append(data, uintWord(128)...)

	log := types.Log{Data: data}
	_, _, ok := parseOrderFulfilled(log)
	assert.False(t, ok)
}

func TestDecodeTransferLogsGroupsByNaturalKey(t *testing.T) {
	blockTimes := map[uint64]time.Time{100: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	logs := []types.Log{erc721Log(42), erc721Log(42), erc721Log(43)}

	records := DecodeTransferLogs(logs, blockTimes, zap.NewNop())

	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].Count)
	assert.Equal(t, int64(42), records[0].TokenID)
	assert.Equal(t, int64(1), records[1].Count)
	assert.Equal(t, blockTimes[100], records[0].Timestamp)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", records[0].From)
}

func TestDecodeTransferLogsSkipsUnrecognized(t *testing.T) {
	logs := []types.Log{
		{Topics: []common.Hash{TopicTransfer, addrTopic(fromAddr), addrTopic(toAddr)}},
	}
	records := DecodeTransferLogs(logs, nil, zap.NewNop())
	assert.Empty(t, records)
}
