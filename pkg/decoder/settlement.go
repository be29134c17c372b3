package decoder

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// settlementLeg is one offer or consideration item of a settlement log.
// Recipient is the zero address for offer legs, which carry no recipient.
type settlementLeg struct {
	ItemType   int64
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
	Recipient  common.Address
}

const (
	offerLegWords         = 4
	considerationLegWords = 5
)

// parseOrderFulfilled decodes the settlement log's offer and consideration
// arrays. Data layout: orderHash, recipient, offer offset, consideration
// offset, then the two item arrays.
func parseOrderFulfilled(log types.Log) ([]settlementLeg, []settlementLeg, bool) {
	offerOffset, ok := word(log.Data, 2)
	if !ok {
		return nil, nil, false
	}
	considerationOffset, ok := word(log.Data, 3)
	if !ok {
		return nil, nil, false
	}

	offerIndex, ok := wordIndex(offerOffset, log.Data)
	if !ok {
		return nil, nil, false
	}
	considerationIndex, ok := wordIndex(considerationOffset, log.Data)
	if !ok {
		return nil, nil, false
	}

	offer, ok := parseLegs(log.Data, offerIndex, offerLegWords)
	if !ok {
		return nil, nil, false
	}
	consideration, ok := parseLegs(log.Data, considerationIndex, considerationLegWords)
	if !ok {
		return nil, nil, false
	}
	return offer, consideration, true
}

func parseLegs(data []byte, index, legWords int) ([]settlementLeg, bool) {
	length, ok := word(data, index)
	if !ok {
		return nil, false
	}
	if !length.IsInt64() || length.Int64() < 0 || length.Int64() > int64(len(data)/32/legWords) {
		return nil, false
	}
	n := int(length.Int64())
	legs := make([]settlementLeg, 0, n)
	for i := 0; i < n; i++ {
		base := index + 1 + i*legWords
		itemType, ok := word(data, base)
		if !ok {
			return nil, false
		}
		token, ok := wordAddress(data, base+1)
		if !ok {
			return nil, false
		}
		identifier, ok := word(data, base+2)
		if !ok {
			return nil, false
		}
		amount, ok := word(data, base+3)
		if !ok {
			return nil, false
		}
		leg := settlementLeg{
			ItemType:   itemType.Int64(),
			Token:      token,
			Identifier: identifier,
			Amount:     amount,
		}
		if legWords == considerationLegWords {
			recipient, ok := wordAddress(data, base+4)
			if !ok {
				return nil, false
			}
			leg.Recipient = recipient
		}
		legs = append(legs, leg)
	}
	return legs, true
}

// legsMatchRecord reports whether any leg carries the record's token.
func legsMatchRecord(legs []settlementLeg, rec *model.TransferRecord) bool {
	for _, leg := range legs {
		if strings.EqualFold(leg.Token.Hex(), rec.Contract) &&
			leg.Identifier.Int64() == rec.TokenID {
			return true
		}
	}
	return false
}
