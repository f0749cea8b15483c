package session

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vietddude/commune/internal/core/domain"
)

// Caller is the JSON-RPC surface of the relay. *rpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, out any, method string, params ...any) error
}

// SponsorRequest is a call the relay submits and pays for on the user's behalf.
type SponsorRequest struct {
	ID        string         `json:"id"`
	ChainID   hexutil.Uint64 `json:"chainId"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Data      hexutil.Bytes  `json:"data"`
	Value     *hexutil.Big   `json:"value,omitempty"`
	Signature hexutil.Bytes  `json:"signature"`
}

// SponsorRelay talks to a fee-sponsoring relay over JSON-RPC.
type SponsorRelay struct {
	client Caller
	nonce  func() int64
}

func NewSponsorRelay(client Caller, nonce func() int64) *SponsorRelay {
	return &SponsorRelay{client: client, nonce: nonce}
}

// Sign builds a relay request for call and signs its digest with key.
func (r *SponsorRelay) Sign(key *ecdsa.PrivateKey, chainID domain.ChainID, call domain.Call) (SponsorRequest, error) {
	req := SponsorRequest{
		ChainID: hexutil.Uint64(chainID),
		From:    crypto.PubkeyToAddress(key.PublicKey),
		To:      common.HexToAddress(call.To),
		Data:    call.Data,
	}
	if call.Value != nil && call.Value.Sign() > 0 {
		req.Value = (*hexutil.Big)(call.Value)
	}

	digest := requestDigest(req, r.nonce())
	sig, err := crypto.Sign(accounts.TextHash(digest.Bytes()), key)
	if err != nil {
		return SponsorRequest{}, fmt.Errorf("sign sponsor request: %w", err)
	}
	req.ID = digest.Hex()
	req.Signature = sig
	return req, nil
}

// Relay submits req and returns the transaction hash the relay broadcast.
func (r *SponsorRelay) Relay(ctx context.Context, req SponsorRequest) (string, error) {
	var hash common.Hash
	if err := r.client.Call(ctx, &hash, "sponsor_relayCall", req); err != nil {
		return "", fmt.Errorf("sponsor_relayCall failed: %w", err)
	}
	return hash.Hex(), nil
}

// Lookup returns the hash of a relayed request, empty while the relay has not
// broadcast it.
func (r *SponsorRelay) Lookup(ctx context.Context, id string) (string, error) {
	var hash *common.Hash
	if err := r.client.Call(ctx, &hash, "sponsor_getTransactionHash", id); err != nil {
		return "", fmt.Errorf("sponsor_getTransactionHash failed: %w", err)
	}
	if hash == nil {
		return "", nil
	}
	return hash.Hex(), nil
}

func requestDigest(req SponsorRequest, nonce int64) common.Hash {
	value := []byte{}
	if req.Value != nil {
		value = req.Value.ToInt().Bytes()
	}
	return crypto.Keccak256Hash(
		common.LeftPadBytes(new(big.Int).SetUint64(uint64(req.ChainID)).Bytes(), 32),
		req.From.Bytes(),
		req.To.Bytes(),
		req.Data,
		common.LeftPadBytes(value, 32),
		common.LeftPadBytes(big.NewInt(nonce).Bytes(), 32),
	)
}
