package evm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/rpc/provider"
)

type stubCall struct {
	result any
	err    error
}

// fakeNode answers calls by method name and records the params it saw.
type fakeNode struct {
	responses map[string]stubCall
	params    map[string][]any
}

func newFakeNode() *fakeNode {
	return &fakeNode{responses: map[string]stubCall{}, params: map[string][]any{}}
}

func (n *fakeNode) Call(ctx context.Context, out any, method string, params ...any) error {
	n.params[method] = params
	resp, ok := n.responses[method]
	if !ok {
		return errors.New("unexpected method " + method)
	}
	if resp.err != nil {
		return resp.err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(resp.result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// revertData is the ABI encoding of Error("not your turn").
func revertData() string {
	return "0x08c379a0" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"000000000000000000000000000000000000000000000000000000000000000d" +
		"6e6f7420796f7572207475726e00000000000000000000000000000000000000"
}

func TestGetReceipt_Pending(t *testing.T) {
	node := newFakeNode()
	node.responses["eth_getTransactionReceipt"] = stubCall{result: nil}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	r, err := a.GetReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Nil(t, r)
}

func TestGetReceipt_Success(t *testing.T) {
	hash := common.HexToHash("0x01")
	node := newFakeNode()
	node.responses["eth_getTransactionReceipt"] = stubCall{result: map[string]any{
		"transactionHash": hash,
		"blockNumber":     "0x10",
		"blockHash":       common.HexToHash("0x02"),
		"gasUsed":         "0x5208",
		"status":          "0x1",
	}}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	r, err := a.GetReceipt(context.Background(), hash.Hex())
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, hash.Hex(), r.TxHash)
	require.Equal(t, uint64(16), r.BlockNumber)
	require.Equal(t, uint64(21000), r.GasUsed)
	require.Equal(t, domain.ReceiptStatusSuccess, r.Status)
	require.Empty(t, r.RevertReason)
}

func TestGetReceipt_RevertedRecoversReason(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	node := newFakeNode()
	node.responses["eth_getTransactionReceipt"] = stubCall{result: map[string]any{
		"transactionHash": common.HexToHash("0x03"),
		"blockNumber":     "0x20",
		"blockHash":       common.HexToHash("0x04"),
		"gasUsed":         "0x1",
		"status":          "0x0",
	}}
	node.responses["eth_getTransactionByHash"] = stubCall{result: map[string]any{
		"from":  common.HexToAddress("0x01"),
		"to":    to,
		"input": "0x1234",
		"value": "0x0",
		"gas":   "0x5208",
	}}
	node.responses["eth_call"] = stubCall{err: &provider.RPCError{
		Code:    3,
		Message: "execution reverted: not your turn",
		Data:    json.RawMessage(`"` + revertData() + `"`),
	}}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	r, err := a.GetReceipt(context.Background(), "0x03")
	require.NoError(t, err)
	require.Equal(t, domain.ReceiptStatusReverted, r.Status)
	require.Equal(t, "not your turn", r.RevertReason)

	// replay happens at the receipt's block
	require.Equal(t, "0x20", node.params["eth_call"][1])
}

func TestGetReceipt_RevertedWithoutReason(t *testing.T) {
	node := newFakeNode()
	node.responses["eth_getTransactionReceipt"] = stubCall{result: map[string]any{
		"transactionHash": common.HexToHash("0x05"),
		"blockNumber":     "0x1",
		"blockHash":       common.HexToHash("0x06"),
		"gasUsed":         "0x1",
		"status":          "0x0",
	}}
	node.responses["eth_getTransactionByHash"] = stubCall{err: errors.New("pruned")}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	r, err := a.GetReceipt(context.Background(), "0x05")
	require.NoError(t, err)
	require.Equal(t, domain.ReceiptStatusReverted, r.Status)
	require.Empty(t, r.RevertReason)
}

func TestGetReceipt_RPCError(t *testing.T) {
	node := newFakeNode()
	node.responses["eth_getTransactionReceipt"] = stubCall{err: errors.New("connection refused")}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	_, err := a.GetReceipt(context.Background(), "0x05")
	require.ErrorContains(t, err, "connection refused")
}

func TestCallContract(t *testing.T) {
	node := newFakeNode()
	node.responses["eth_call"] = stubCall{result: "0x00ff"}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	out, err := a.CallContract(context.Background(), common.Address{}, domain.Call{
		To:     "0x00000000000000000000000000000000000000aa",
		Data:   []byte{0x01},
		Method: "getCommune",
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0xff}, out)
	require.Equal(t, "latest", node.params["eth_call"][1])
}

func TestCallContract_Revert(t *testing.T) {
	node := newFakeNode()
	node.responses["eth_call"] = stubCall{err: &provider.RPCError{Code: 3, Message: "execution reverted: not a member"}}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	_, err := a.CallContract(context.Background(), common.Address{}, domain.Call{Method: "markChoreCompleted"})

	var revert *RevertError
	require.ErrorAs(t, err, &revert)
	require.Equal(t, "not a member", revert.Reason)
	require.Equal(t, "markChoreCompleted reverted: not a member", err.Error())
}

func TestFeeInputs(t *testing.T) {
	node := newFakeNode()
	node.responses["eth_maxPriorityFeePerGas"] = stubCall{result: "0x3b9aca00"}
	node.responses["eth_getBlockByNumber"] = stubCall{result: map[string]any{"baseFeePerGas": "0x64"}}
	node.responses["eth_getTransactionCount"] = stubCall{result: "0x7"}
	node.responses["eth_estimateGas"] = stubCall{result: "0x5208"}
	node.responses["eth_chainId"] = stubCall{result: "0x14a34"}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	ctx := context.Background()

	tip, err := a.SuggestGasTipCap(ctx)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000_000_000), tip)

	base, err := a.BaseFee(ctx)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), base)

	nonce, err := a.PendingNonceAt(ctx, common.Address{})
	require.NoError(t, err)
	require.Equal(t, uint64(7), nonce)
	require.Equal(t, "pending", node.params["eth_getTransactionCount"][1])

	gas, err := a.EstimateGas(ctx, common.Address{}, domain.Call{To: "0x01", Value: big.NewInt(5)})
	require.NoError(t, err)
	require.Equal(t, uint64(21000), gas)
	args := node.params["eth_estimateGas"][0].(map[string]any)
	require.Equal(t, (*hexutil.Big)(big.NewInt(5)), args["value"])

	id, err := a.RemoteChainID(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(domain.ChainIDBaseSepolia), id)
}

func TestBaseFee_Missing(t *testing.T) {
	node := newFakeNode()
	node.responses["eth_getBlockByNumber"] = stubCall{result: map[string]any{}}

	a := NewEVMAdapter(domain.ChainIDBaseSepolia, node)
	_, err := a.BaseFee(context.Background())
	require.Error(t, err)
}

func TestRevertReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"abi encoded", &provider.RPCError{Code: 3, Data: json.RawMessage(`"` + revertData() + `"`)}, "not your turn"},
		{"message only", &provider.RPCError{Code: -32000, Message: "execution reverted: budget exceeded"}, "budget exceeded"},
		{"plain message", &provider.RPCError{Code: -32000, Message: "out of gas"}, "out of gas"},
		{"not rpc", errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, RevertReason(tt.err))
		})
	}
}
