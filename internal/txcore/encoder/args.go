package encoder

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/txerr"
)

// Argument names shared by the encoder, the submission gate and callers.
const (
	FieldCommuneID   = "communeId"
	FieldNonce       = "nonce"
	FieldSignature   = "signature"
	FieldUsername    = "username"
	FieldTitle       = "title"
	FieldFrequency   = "frequency"
	FieldStartTime   = "startTime"
	FieldChoreID     = "choreId"
	FieldPeriod      = "period"
	FieldAssignee    = "assignee"
	FieldDescription = "description"
	FieldBudget      = "budget"
	FieldAmount      = "amount"
	FieldDueDate     = "dueDate"
	FieldTaskID      = "taskId"
	FieldExpenseID   = "expenseId"
	FieldNewAssignee = "newAssignee"
	FieldMember      = "member"
	FieldSpender     = "spender"
)

const secondsPerDay = 86400

// Args are the raw domain arguments of one action, as entered in a form.
type Args map[string]string

// Get returns the trimmed value of field.
func (a Args) Get(field string) string {
	return strings.TrimSpace(a[field])
}

type argReader struct {
	kind domain.ActionKind
	args Args
}

func (r argReader) fail(field, reason string, cause error) error {
	return &txerr.EncodingError{Kind: string(r.kind), Field: field, Reason: reason, Cause: cause}
}

func (r argReader) required(field string) (string, error) {
	v := r.args.Get(field)
	if v == "" {
		return "", r.fail(field, "missing", nil)
	}
	return v, nil
}

// id parses an on-chain identifier. Placeholder ids never reach the chain.
func (r argReader) id(field string) (*big.Int, error) {
	v, err := r.required(field)
	if err != nil {
		return nil, err
	}
	if domain.IsPlaceholderID(v) {
		return nil, r.fail(field, "placeholder id has no on-chain counterpart", nil)
	}
	return r.uint(field, v)
}

func (r argReader) uint(field, v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, r.fail(field, "not a non-negative integer: "+v, nil)
	}
	return n, nil
}

func (r argReader) amount(field string) (*big.Int, error) {
	v, err := r.required(field)
	if err != nil {
		return nil, err
	}
	n, err := ParseAmount(v)
	if err != nil {
		return nil, r.fail(field, "", err)
	}
	return n, nil
}

// frequency accepts daily, weekly, monthly or a whole number of days and returns seconds.
func (r argReader) frequency(field string) (*big.Int, error) {
	v, err := r.required(field)
	if err != nil {
		return nil, err
	}
	var days int64
	switch strings.ToLower(v) {
	case "daily":
		days = 1
	case "weekly":
		days = 7
	case "monthly":
		days = 30
	default:
		days, err = strconv.ParseInt(v, 10, 64)
		if err != nil || days <= 0 {
			return nil, r.fail(field, "expected daily, weekly, monthly or a positive number of days", err)
		}
	}
	return big.NewInt(days * secondsPerDay), nil
}

// timestamp accepts RFC3339, YYYY-MM-DD or unix seconds and returns whole seconds.
func (r argReader) timestamp(field string) (*big.Int, error) {
	v, err := r.required(field)
	if err != nil {
		return nil, err
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return nil, r.fail(field, "negative timestamp", nil)
		}
		return big.NewInt(secs), nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return big.NewInt(t.Unix()), nil
		}
	}
	return nil, r.fail(field, "unrecognised time: "+v, nil)
}

func (r argReader) address(field string) (common.Address, error) {
	v, err := r.required(field)
	if err != nil {
		return common.Address{}, err
	}
	return r.parseAddress(field, v)
}

func (r argReader) parseAddress(field, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, r.fail(field, "not a 20-byte hex address: "+v, nil)
	}
	addr := common.HexToAddress(v)
	// Mixed-case input must carry a valid EIP-55 checksum.
	body := strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != "0x"+body {
		return common.Address{}, r.fail(field, "bad address checksum: "+v, nil)
	}
	return addr, nil
}

func (r argReader) bytes(field string) ([]byte, error) {
	v, err := r.required(field)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(v, "0x") {
		v = "0x" + v
	}
	b, err := hexutil.Decode(v)
	if err != nil {
		return nil, r.fail(field, "invalid hex", err)
	}
	return b, nil
}

// CanonicalID returns the form of an id the chain and the read model use:
// decimal for integers, EIP-55 for addresses. Anything else, placeholders
// included, is returned unchanged.
func CanonicalID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || domain.IsPlaceholderID(v) {
		return v
	}
	if (strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X")) && common.IsHexAddress(v) {
		return common.HexToAddress(v).Hex()
	}
	if n, ok := new(big.Int).SetString(v, 10); ok && n.Sign() >= 0 {
		return n.String()
	}
	return v
}
