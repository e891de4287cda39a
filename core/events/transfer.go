package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/core/types"
)

const (
	// TypeTokenTransfer is emitted for reward token balance movements.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenMinted is emitted when supply is created at genesis.
	TypeTokenMinted = "token.minted"
)

type TokenTransfer struct {
	Asset  string
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = e.From.Hex()
	attrs["to"] = e.To.Hex()
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTokenTransfer, Attributes: attrs}
}

type TokenMinted struct {
	Asset  string
	To     common.Address
	Amount *big.Int
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

func (e TokenMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMinted,
		Attributes: map[string]string{
			"asset":  normalizeAsset(e.Asset),
			"to":     e.To.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}
