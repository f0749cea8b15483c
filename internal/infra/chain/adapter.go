package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vietddude/commune/internal/core/domain"
)

// Adapter is the chain boundary used by sessions, the confirmation watcher and
// the read model.
type Adapter interface {
	// ChainID returns the chain the adapter was configured for
	ChainID() domain.ChainID

	// RemoteChainID asks the node which chain it serves
	RemoteChainID(ctx context.Context) (uint64, error)

	// GetLatestBlock returns the latest block number on the chain
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetReceipt returns the receipt of txHash, or nil while it is not mined
	GetReceipt(ctx context.Context, txHash string) (*domain.Receipt, error)

	// CallContract runs a read-only call against the latest state
	CallContract(ctx context.Context, from common.Address, call domain.Call) ([]byte, error)

	// Gas and nonce inputs for building transactions
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BaseFee(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from common.Address, call domain.Call) (uint64, error)

	// SendTransaction broadcasts a signed transaction and returns its hash
	SendTransaction(ctx context.Context, tx *types.Transaction) (string, error)
}
