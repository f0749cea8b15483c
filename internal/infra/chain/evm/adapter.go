// Package evm implements the chain adapter over JSON-RPC.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vietddude/commune/internal/core/domain"
)

// Caller is the RPC surface the adapter needs. *rpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, out any, method string, params ...any) error
}

type EVMAdapter struct {
	chainID domain.ChainID
	client  Caller
	log     *slog.Logger
}

func NewEVMAdapter(chainID domain.ChainID, client Caller) *EVMAdapter {
	return &EVMAdapter{
		chainID: chainID,
		client:  client,
		log:     slog.Default().With("component", "evm", "chain", uint64(chainID)),
	}
}

func (a *EVMAdapter) ChainID() domain.ChainID {
	return a.chainID
}

func (a *EVMAdapter) RemoteChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := a.client.Call(ctx, &id, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("eth_chainId failed: %w", err)
	}
	return uint64(id), nil
}

func (a *EVMAdapter) GetLatestBlock(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := a.client.Call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}
	return uint64(n), nil
}

type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
	BlockHash       common.Hash    `json:"blockHash"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	Status          hexutil.Uint64 `json:"status"`
}

// GetReceipt fetches the receipt of txHash. For reverted transactions the call
// is replayed at its block to recover the revert reason.
func (a *EVMAdapter) GetReceipt(ctx context.Context, txHash string) (*domain.Receipt, error) {
	var raw *rpcReceipt
	if err := a.client.Call(ctx, &raw, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt failed: %w", err)
	}
	if raw == nil || raw.BlockNumber == nil {
		return nil, nil
	}

	r := &domain.Receipt{
		TxHash:      raw.TransactionHash.Hex(),
		BlockNumber: raw.BlockNumber.ToInt().Uint64(),
		BlockHash:   raw.BlockHash.Hex(),
		GasUsed:     uint64(raw.GasUsed),
		Status:      domain.ReceiptStatusSuccess,
	}
	if uint64(raw.Status) == types.ReceiptStatusFailed {
		r.Status = domain.ReceiptStatusReverted
		reason, err := a.revertReason(ctx, txHash, raw.BlockNumber)
		if err != nil {
			a.log.Debug("Could not recover revert reason", "hash", txHash, "error", err)
		}
		r.RevertReason = reason
	}
	return r, nil
}

type rpcTransaction struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
	Value *hexutil.Big    `json:"value"`
	Gas   hexutil.Uint64  `json:"gas"`
}

func (a *EVMAdapter) revertReason(ctx context.Context, txHash string, block *hexutil.Big) (string, error) {
	var tx *rpcTransaction
	if err := a.client.Call(ctx, &tx, "eth_getTransactionByHash", txHash); err != nil {
		return "", err
	}
	if tx == nil || tx.To == nil {
		return "", errors.New("transaction not found")
	}

	msg := callArgs(tx.From, tx.To.Hex(), tx.Input, tx.Value.ToInt())
	msg["gas"] = tx.Gas
	err := a.client.Call(ctx, nil, "eth_call", msg, block.String())
	if err == nil {
		return "", errors.New("replay did not revert")
	}
	return RevertReason(err), nil
}

// CallContract runs call with eth_call. A revert is returned as *RevertError.
func (a *EVMAdapter) CallContract(ctx context.Context, from common.Address, call domain.Call) ([]byte, error) {
	var out hexutil.Bytes
	err := a.client.Call(ctx, &out, "eth_call", callArgs(from, call.To, call.Data, call.Value), "latest")
	if err != nil {
		if IsRevert(err) {
			return nil, &RevertError{Method: call.Method, Reason: RevertReason(err), Cause: err}
		}
		return nil, fmt.Errorf("eth_call %s failed: %w", call.Method, err)
	}
	return out, nil
}

func (a *EVMAdapter) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var n hexutil.Uint64
	if err := a.client.Call(ctx, &n, "eth_getTransactionCount", account, "pending"); err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount failed: %w", err)
	}
	return uint64(n), nil
}

func (a *EVMAdapter) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip hexutil.Big
	if err := a.client.Call(ctx, &tip, "eth_maxPriorityFeePerGas"); err != nil {
		return nil, fmt.Errorf("eth_maxPriorityFeePerGas failed: %w", err)
	}
	return tip.ToInt(), nil
}

func (a *EVMAdapter) BaseFee(ctx context.Context) (*big.Int, error) {
	var head struct {
		BaseFee *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := a.client.Call(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber failed: %w", err)
	}
	if head.BaseFee == nil {
		return nil, errors.New("chain does not report a base fee")
	}
	return head.BaseFee.ToInt(), nil
}

func (a *EVMAdapter) EstimateGas(ctx context.Context, from common.Address, call domain.Call) (uint64, error) {
	var gas hexutil.Uint64
	if err := a.client.Call(ctx, &gas, "eth_estimateGas", callArgs(from, call.To, call.Data, call.Value)); err != nil {
		if IsRevert(err) {
			return 0, &RevertError{Method: call.Method, Reason: RevertReason(err), Cause: err}
		}
		return 0, fmt.Errorf("eth_estimateGas failed: %w", err)
	}
	return uint64(gas), nil
}

func (a *EVMAdapter) SendTransaction(ctx context.Context, tx *types.Transaction) (string, error) {
	data, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	var hash common.Hash
	if err := a.client.Call(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(data)); err != nil {
		return "", fmt.Errorf("eth_sendRawTransaction failed: %w", err)
	}
	return hash.Hex(), nil
}

func callArgs(from common.Address, to string, data []byte, value *big.Int) map[string]any {
	args := map[string]any{
		"from":  from,
		"to":    common.HexToAddress(to),
		"input": hexutil.Bytes(data),
	}
	if value != nil && value.Sign() > 0 {
		args["value"] = (*hexutil.Big)(value)
	}
	return args
}
