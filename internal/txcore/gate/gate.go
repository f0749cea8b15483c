// Package gate checks the preconditions of a submission.
package gate

import (
	"context"
	"log/slog"

	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/txcore"
	"github.com/vietddude/commune/internal/txcore/encoder"
)

// Gate validates session state and form input before anything is sent.
type Gate struct {
	requiredChain uint64
	log           *slog.Logger
}

// New creates a Gate for requiredChain.
func New(requiredChain uint64) *Gate {
	return &Gate{
		requiredChain: requiredChain,
		log:           slog.Default().With("component", "gate"),
	}
}

// RequiredChain returns the chain submissions must target.
func (g *Gate) RequiredChain() uint64 {
	return g.requiredChain
}

// Check runs, in order: connection, required fields, chain. It may request a
// chain switch from the session but never submits.
func (g *Gate) Check(
	ctx context.Context,
	session txcore.SessionContext,
	required []string,
	args encoder.Args,
) error {
	if session == nil || !session.Connected() || session.Address() == "" {
		return &txerr.NotConnectedError{}
	}

	for _, field := range required {
		if args.Get(field) == "" {
			return &txerr.ValidationError{Field: field}
		}
	}

	if g.requiredChain == 0 {
		return nil
	}
	have := session.ChainID()
	if have == g.requiredChain {
		return nil
	}

	g.log.Info("Requesting chain switch", "from", have, "to", g.requiredChain)
	if err := session.SwitchChain(ctx, g.requiredChain); err != nil {
		return &txerr.WrongChainError{Want: g.requiredChain, Have: have, Cause: err}
	}
	if now := session.ChainID(); now != g.requiredChain {
		return &txerr.WrongChainError{Want: g.requiredChain, Have: now}
	}
	return nil
}
