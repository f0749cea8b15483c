package evm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vietddude/commune/internal/infra/rpc/provider"
)

// RevertError is a call rejected by contract execution.
type RevertError struct {
	Method string
	Reason string
	Cause  error
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s reverted", e.Method)
	}
	return fmt.Sprintf("%s reverted: %s", e.Method, e.Reason)
}

func (e *RevertError) Unwrap() error { return e.Cause }

// IsRevert reports whether err is an execution revert from the node.
func IsRevert(err error) bool {
	var rpcErr *provider.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == 3 || strings.Contains(strings.ToLower(rpcErr.Message), "revert")
}

// RevertReason extracts a human readable reason from a revert error. Error(string)
// payloads are decoded; otherwise the node's message is used.
func RevertReason(err error) string {
	var rpcErr *provider.RPCError
	if !errors.As(err, &rpcErr) {
		return ""
	}
	if data := rpcErr.DataString(); data != "" {
		if raw, derr := hexutil.Decode(data); derr == nil {
			if reason, uerr := abi.UnpackRevert(raw); uerr == nil {
				return reason
			}
		}
	}
	msg := rpcErr.Message
	if i := strings.Index(msg, "execution reverted: "); i >= 0 {
		return msg[i+len("execution reverted: "):]
	}
	return msg
}
