package decoder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures recognized by the decoder. Anything else is skipped.
var (
	// TopicTransfer covers both ERC-721 transfers (4 topics, tokenId indexed)
	// and ERC-20 style value transfers (3 topics, amount in data).
	TopicTransfer = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	// TopicTransferSingle is the ERC-1155 single transfer encoding.
	TopicTransferSingle = crypto.Keccak256Hash([]byte("TransferSingle(address,address,address,uint256,uint256)"))
	// TopicTransferBatch is the ERC-1155 batch transfer encoding.
	TopicTransferBatch = crypto.Keccak256Hash([]byte("TransferBatch(address,address,address,uint256[],uint256[])"))
	// TopicOrderFulfilled is the structured settlement log listing offer and
	// consideration legs.
	TopicOrderFulfilled = crypto.Keccak256Hash([]byte("OrderFulfilled(bytes32,address,address,address,(uint8,address,uint256,uint256)[],(uint8,address,uint256,uint256,address)[])"))
	// TopicRoyaltyFee is the compact royalty-fee log: one data word with the
	// fee rate in the high bits and the recipient in the low 160 bits.
	TopicRoyaltyFee = crypto.Keccak256Hash([]byte("RoyaltyFee(uint256)"))
)

// NullAddress is the zero address used for mints and burns.
const NullAddress = "0x0000000000000000000000000000000000000000"

// tokenTransfer is the normalized form of one transfer leg extracted from a
// raw log, before grouping into records.
type tokenTransfer struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
	Count   int64
}

// word reads the i-th 32-byte word of ABI-encoded data.
func word(data []byte, i int) (*big.Int, bool) {
	if i < 0 {
		return nil, false
	}
	start := i * 32
	if start+32 > len(data) {
		return nil, false
	}
	return new(big.Int).SetBytes(data[start : start+32]), true
}

// wordIndex converts a byte-offset word into a word index. Offsets that are
// negative, oversized or otherwise cannot address the data are rejected
// rather than trusted.
func wordIndex(offset *big.Int, data []byte) (int, bool) {
	if !offset.IsInt64() {
		return 0, false
	}
	v := offset.Int64()
	if v < 0 || v > int64(len(data)) {
		return 0, false
	}
	return int(v) / 32, true
}

func wordAddress(data []byte, i int) (common.Address, bool) {
	w, ok := word(data, i)
	if !ok {
		return common.Address{}, false
	}
	return common.BigToAddress(w), true
}

// decodeTransferLog turns one raw log into transfer legs. The second return
// is false when the log is not a recognized NFT transfer shape; such logs are
// skipped, never guessed at.
func decodeTransferLog(log types.Log) ([]tokenTransfer, bool) {
	if len(log.Topics) == 0 {
		return nil, false
	}
	switch log.Topics[0] {
	case TopicTransfer:
		// The 3-topic form is a fungible value transfer, not an NFT move.
		if len(log.Topics) != 4 {
			return nil, false
		}
		return []tokenTransfer{{
			From:    common.BytesToAddress(log.Topics[1].Bytes()),
			To:      common.BytesToAddress(log.Topics[2].Bytes()),
			TokenID: new(big.Int).SetBytes(log.Topics[3].Bytes()),
			Count:   1,
		}}, true

	case TopicTransferSingle:
		if len(log.Topics) != 4 {
			return nil, false
		}
		id, ok := word(log.Data, 0)
		if !ok {
			return nil, false
		}
		value, ok := word(log.Data, 1)
		if !ok {
			return nil, false
		}
		return []tokenTransfer{{
			From:    common.BytesToAddress(log.Topics[2].Bytes()),
			To:      common.BytesToAddress(log.Topics[3].Bytes()),
			TokenID: id,
			Count:   value.Int64(),
		}}, true

	case TopicTransferBatch:
		if len(log.Topics) != 4 {
			return nil, false
		}
		return decodeBatchData(log)

	default:
		return nil, false
	}
}

func decodeBatchData(log types.Log) ([]tokenTransfer, bool) {
	idsOffset, ok := word(log.Data, 0)
	if !ok {
		return nil, false
	}
	valuesOffset, ok := word(log.Data, 1)
	if !ok {
		return nil, false
	}
	idsIndex, ok := wordIndex(idsOffset, log.Data)
	if !ok {
		return nil, false
	}
	valuesIndex, ok := wordIndex(valuesOffset, log.Data)
	if !ok {
		return nil, false
	}
	ids, ok := wordArray(log.Data, idsIndex)
	if !ok {
		return nil, false
	}
	values, ok := wordArray(log.Data, valuesIndex)
	if !ok || len(ids) != len(values) {
		return nil, false
	}

	from := common.BytesToAddress(log.Topics[2].Bytes())
	to := common.BytesToAddress(log.Topics[3].Bytes())
	transfers := make([]tokenTransfer, 0, len(ids))
	for i := range ids {
		transfers = append(transfers, tokenTransfer{
			From:    from,
			To:      to,
			TokenID: ids[i],
			Count:   values[i].Int64(),
		})
	}
	return transfers, true
}

// wordArray reads a dynamic uint256[] whose length word sits at word index i.
// A length the data cannot possibly hold marks the log malformed.
func wordArray(data []byte, i int) ([]*big.Int, bool) {
	length, ok := word(data, i)
	if !ok {
		return nil, false
	}
	if !length.IsInt64() || length.Int64() < 0 || length.Int64() > int64(len(data)/32) {
		return nil, false
	}
	n := int(length.Int64())
	out := make([]*big.Int, 0, n)
	for j := 0; j < n; j++ {
		w, ok := word(data, i+1+j)
		if !ok {
			return nil, false
		}
		out = append(out, w)
	}
	return out, true
}
