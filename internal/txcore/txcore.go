// Package txcore defines the collaborators the transaction lifecycle is built
// against. Implementations are injected at construction so tests can use doubles.
package txcore

import (
	"context"
	"time"

	"github.com/vietddude/commune/internal/core/domain"
)

// SendOptions are out-of-band flags accompanying a transaction.
type SendOptions struct {
	// Sponsor asks the session to route fees to the configured paymaster.
	Sponsor bool
}

// SessionContext is the wallet session the core reads and sends through.
type SessionContext interface {
	// Address returns the connected account, empty when disconnected.
	Address() string

	// Connected reports whether a wallet session is active.
	Connected() bool

	// ChainID returns the active chain.
	ChainID() uint64

	// SwitchChain asks the session to move to chainID.
	SwitchChain(ctx context.Context, chainID uint64) error

	// SendTransaction sends call and returns its transaction hash.
	SendTransaction(ctx context.Context, call domain.Call, opts SendOptions) (string, error)
}

// HashRecoverer is implemented by sessions that can find the hash of a call whose
// send was aborted client-side.
type HashRecoverer interface {
	RecoverHash(ctx context.Context, call domain.Call) (string, error)
}

// ReceiptSource returns the receipt of a transaction, or nil while it is not mined.
type ReceiptSource interface {
	GetReceipt(ctx context.Context, txHash string) (*domain.Receipt, error)
}

// ReadModelContext returns point-in-time snapshots of on-chain state.
type ReadModelContext interface {
	Snapshot(ctx context.Context, user string, from, to time.Time) (*domain.Snapshot, error)
}

// Notifier renders outcomes for the presentation layer.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}
