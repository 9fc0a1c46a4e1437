package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%s:%d", id.Hash.String(), id.Number)
}

// TerminalString implements log.TerminalStringer, formatting a string for console
// output during logging.
func (id BlockID) TerminalString() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

// ReceiptBlockID returns the block a receipt was included in.
func ReceiptBlockID(r *types.Receipt) BlockID {
	var n uint64
	if r.BlockNumber != nil {
		n = r.BlockNumber.Uint64()
	}
	return BlockID{Hash: r.BlockHash, Number: n}
}
