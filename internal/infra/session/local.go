// Package session implements wallet sessions backed by a local private key.
package session

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/chain"
	"github.com/vietddude/commune/internal/infra/rpc/provider"
	"github.com/vietddude/commune/internal/txcore"
)

var (
	// ErrSendAborted is returned when a signed transaction was handed to the node
	// but the outcome of the broadcast is unknown.
	ErrSendAborted = errors.New("send aborted: broadcast outcome unknown")

	ErrUnknownChain  = errors.New("chain not configured")
	ErrNoSponsor     = errors.New("no sponsor relay configured")
	ErrHashNotKnown  = errors.New("no transaction recorded for call")
	ErrNotConnected  = errors.New("session has no key")
	ErrChainMismatch = errors.New("node serves a different chain")
)

const (
	DefaultSendTimeout = 10 * time.Second
	// gasMarginPercent is added on top of eth_estimateGas
	gasMarginPercent = 20
)

// Config configures a LocalSession.
type Config struct {
	Key         *ecdsa.PrivateKey
	Chains      map[domain.ChainID]chain.Adapter
	Initial     domain.ChainID
	Sponsor     *SponsorRelay
	SendTimeout time.Duration
}

// LocalSession signs EIP-1559 transactions with a private key held in process.
type LocalSession struct {
	key     *ecdsa.PrivateKey
	from    common.Address
	chains  map[domain.ChainID]chain.Adapter
	sponsor *SponsorRelay
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	active domain.ChainID
	nonces map[domain.ChainID]uint64
	sent   map[string]sentCall
}

type sentCall struct {
	chainID domain.ChainID
	hash    string
	request string // sponsor request id, set for relayed calls
}

// NewLocal creates a session. A nil key yields a disconnected session.
func NewLocal(cfg Config) (*LocalSession, error) {
	if _, ok := cfg.Chains[cfg.Initial]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, cfg.Initial)
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	s := &LocalSession{
		key:     cfg.Key,
		chains:  cfg.Chains,
		sponsor: cfg.Sponsor,
		timeout: cfg.SendTimeout,
		active:  cfg.Initial,
		nonces:  make(map[domain.ChainID]uint64),
		sent:    make(map[string]sentCall),
		log:     slog.Default().With("component", "session"),
	}
	if cfg.Key != nil {
		s.from = crypto.PubkeyToAddress(cfg.Key.PublicKey)
	}
	return s, nil
}

func (s *LocalSession) Address() string {
	if s.key == nil {
		return ""
	}
	return s.from.Hex()
}

func (s *LocalSession) Connected() bool {
	return s.key != nil
}

func (s *LocalSession) ChainID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(s.active)
}

// SwitchChain moves the session to chainID after checking the node agrees.
func (s *LocalSession) SwitchChain(ctx context.Context, chainID uint64) error {
	adapter, ok := s.chains[domain.ChainID(chainID)]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	remote, err := adapter.RemoteChainID(ctx)
	if err != nil {
		return fmt.Errorf("switch chain: %w", err)
	}
	if remote != chainID {
		return fmt.Errorf("%w: want %d, node reports %d", ErrChainMismatch, chainID, remote)
	}

	s.mu.Lock()
	s.active = domain.ChainID(chainID)
	s.mu.Unlock()
	s.log.Info("Switched chain", "chain", chainID)
	return nil
}

// SendTransaction signs and broadcasts call on the active chain, or hands it to
// the sponsor relay when opts.Sponsor is set.
func (s *LocalSession) SendTransaction(ctx context.Context, call domain.Call, opts txcore.SendOptions) (string, error) {
	if s.key == nil {
		return "", ErrNotConnected
	}
	chainID, adapter := s.current()

	if opts.Sponsor {
		return s.sendSponsored(ctx, chainID, call)
	}

	tx, err := s.build(ctx, chainID, adapter, call)
	if err != nil {
		return "", err
	}
	hash := tx.Hash().Hex()
	s.remember(call, sentCall{chainID: chainID, hash: hash})

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := adapter.SendTransaction(sendCtx, tx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if alreadyKnown(err) {
			return hash, nil
		}
		if refused(err) {
			// The node refused the transaction; its nonce is free again.
			s.resetNonce(chainID)
			s.forget(call)
			return "", err
		}
		s.log.Warn("Broadcast outcome unknown", "hash", hash, "error", err)
		return hash, fmt.Errorf("%w: %v", ErrSendAborted, err)
	}

	s.log.Debug("Transaction broadcast", "hash", hash, "method", call.Method, "chain", uint64(chainID))
	return hash, nil
}

// RecoverHash returns the hash of the last send of call, asking the sponsor
// relay for relayed calls.
func (s *LocalSession) RecoverHash(ctx context.Context, call domain.Call) (string, error) {
	s.mu.Lock()
	rec, ok := s.sent[fingerprint(call)]
	s.mu.Unlock()
	if !ok {
		return "", ErrHashNotKnown
	}
	if rec.hash != "" || rec.request == "" {
		return rec.hash, nil
	}
	if s.sponsor == nil {
		return "", ErrNoSponsor
	}

	hash, err := s.sponsor.Lookup(ctx, rec.request)
	if err != nil || hash == "" {
		return "", err
	}
	rec.hash = hash
	s.remember(call, rec)
	return hash, nil
}

func (s *LocalSession) sendSponsored(ctx context.Context, chainID domain.ChainID, call domain.Call) (string, error) {
	if s.sponsor == nil {
		return "", ErrNoSponsor
	}
	req, err := s.sponsor.Sign(s.key, chainID, call)
	if err != nil {
		return "", err
	}
	s.remember(call, sentCall{chainID: chainID, request: req.ID})

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	hash, err := s.sponsor.Relay(sendCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if refused(err) {
			s.forget(call)
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrSendAborted, err)
	}
	s.remember(call, sentCall{chainID: chainID, hash: hash, request: req.ID})
	return hash, nil
}

func (s *LocalSession) build(ctx context.Context, chainID domain.ChainID, adapter chain.Adapter, call domain.Call) (*types.Transaction, error) {
	gas, err := adapter.EstimateGas(ctx, s.from, call)
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	tip, err := adapter.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas tip: %w", err)
	}
	base, err := adapter.BaseFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("base fee: %w", err)
	}
	nonce, err := s.nextNonce(ctx, chainID, adapter)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	to := common.HexToAddress(call.To)
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(base, big.NewInt(2)), tip)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(uint64(chainID)),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas + gas*gasMarginPercent/100,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})
	signer := types.LatestSignerForChainID(tx.ChainId())
	signed, err := types.SignTx(tx, signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// nextNonce returns the larger of the node's pending nonce and the next local
// one, so back-to-back sends do not reuse a nonce the node has not seen yet.
func (s *LocalSession) nextNonce(ctx context.Context, chainID domain.ChainID, adapter chain.Adapter) (uint64, error) {
	pending, err := adapter.PendingNonceAt(ctx, s.from)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	nonce := max(pending, s.nonces[chainID])
	s.nonces[chainID] = nonce + 1
	return nonce, nil
}

func (s *LocalSession) resetNonce(chainID domain.ChainID) {
	s.mu.Lock()
	delete(s.nonces, chainID)
	s.mu.Unlock()
}

func (s *LocalSession) current() (domain.ChainID, chain.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.chains[s.active]
}

func (s *LocalSession) remember(call domain.Call, rec sentCall) {
	s.mu.Lock()
	s.sent[fingerprint(call)] = rec
	s.mu.Unlock()
}

func (s *LocalSession) forget(call domain.Call) {
	s.mu.Lock()
	delete(s.sent, fingerprint(call))
	s.mu.Unlock()
}

func fingerprint(call domain.Call) string {
	value := "0"
	if call.Value != nil {
		value = call.Value.String()
	}
	return common.HexToAddress(call.To).Hex() + ":" + hexutil.Encode(call.Data) + ":" + value
}

// refused reports whether the node answered and rejected the request, as
// opposed to the request not reaching it.
func refused(err error) bool {
	var rpcErr *provider.RPCError
	return errors.As(err, &rpcErr) && !alreadyKnown(err)
}

func alreadyKnown(err error) bool {
	var rpcErr *provider.RPCError
	return errors.As(err, &rpcErr) && strings.Contains(strings.ToLower(rpcErr.Message), "already known")
}
