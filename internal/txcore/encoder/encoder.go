// Package encoder maps commune actions and their form arguments to contract calls.
//
// Encoding is pure: the same kind and arguments always produce the same call.
package encoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/infra/contract"
)

// Config holds the contract addresses calls are encoded against.
type Config struct {
	Commune           common.Address
	Token             common.Address
	CollateralManager common.Address
}

// Encoder builds contract calls for every ActionKind.
type Encoder struct {
	cfg Config
}

// New creates an Encoder.
func New(cfg Config) *Encoder {
	return &Encoder{cfg: cfg}
}

// Encode builds the call for kind from args.
func (e *Encoder) Encode(kind domain.ActionKind, args Args) (domain.Call, error) {
	r := argReader{kind: kind, args: args}

	switch kind {
	case domain.ActionApproveAllowance:
		return e.encodeApprove(r)
	case domain.ActionJoinCommune:
		return e.encodeJoin(r)
	}

	communeID, err := r.id(FieldCommuneID)
	if err != nil {
		return domain.Call{}, err
	}

	switch kind {
	case domain.ActionCreateChoreSchedule:
		title, err := r.required(FieldTitle)
		if err != nil {
			return domain.Call{}, err
		}
		freq, err := r.frequency(FieldFrequency)
		if err != nil {
			return domain.Call{}, err
		}
		start, err := r.timestamp(FieldStartTime)
		if err != nil {
			return domain.Call{}, err
		}
		return e.commune(kind, "createChore", communeID, title, freq, start)

	case domain.ActionRemoveChoreSchedule:
		choreID, err := r.id(FieldChoreID)
		if err != nil {
			return domain.Call{}, err
		}
		return e.commune(kind, "removeChore", communeID, choreID)

	case domain.ActionMarkChoreComplete:
		choreID, period, err := choreInstance(r)
		if err != nil {
			return domain.Call{}, err
		}
		return e.commune(kind, "markChoreComplete", communeID, choreID, period)

	case domain.ActionReassignChore:
		choreID, period, err := choreInstance(r)
		if err != nil {
			return domain.Call{}, err
		}
		assignee, err := r.address(FieldAssignee)
		if err != nil {
			return domain.Call{}, err
		}
		return e.commune(kind, "setChoreAssignee", communeID, choreID, period, assignee)

	case domain.ActionCreateTask:
		return e.encodeCreate(r, "createTask", FieldBudget, communeID)

	case domain.ActionMarkTaskDone:
		taskID, err := r.id(FieldTaskID)
		if err != nil {
			return domain.Call{}, err
		}
		return e.commune(kind, "markTaskDone", communeID, taskID)

	case domain.ActionDisputeTask:
		return e.encodeDispute(r, "disputeTask", FieldTaskID, communeID)

	case domain.ActionCreateExpense:
		return e.encodeCreate(r, "createExpense", FieldAmount, communeID)

	case domain.ActionMarkExpensePaid:
		expenseID, err := r.id(FieldExpenseID)
		if err != nil {
			return domain.Call{}, err
		}
		return e.commune(kind, "markExpensePaid", communeID, expenseID)

	case domain.ActionDisputeExpense:
		return e.encodeDispute(r, "disputeExpense", FieldExpenseID, communeID)

	case domain.ActionRemoveMember:
		member, err := r.address(FieldMember)
		if err != nil {
			return domain.Call{}, err
		}
		return e.commune(kind, "removeMember", communeID, member)
	}

	return domain.Call{}, &txerr.EncodingError{Kind: string(kind), Reason: "unsupported action"}
}

func (e *Encoder) encodeJoin(r argReader) (domain.Call, error) {
	communeID, err := r.id(FieldCommuneID)
	if err != nil {
		return domain.Call{}, err
	}
	nonceStr, err := r.required(FieldNonce)
	if err != nil {
		return domain.Call{}, err
	}
	nonce, err := r.uint(FieldNonce, nonceStr)
	if err != nil {
		return domain.Call{}, err
	}
	sig, err := r.bytes(FieldSignature)
	if err != nil {
		return domain.Call{}, err
	}
	return e.commune(r.kind, "joinCommune", communeID, nonce, sig, r.args.Get(FieldUsername))
}

func (e *Encoder) encodeCreate(r argReader, method, amountField string, communeID *big.Int) (domain.Call, error) {
	desc, err := r.required(FieldDescription)
	if err != nil {
		return domain.Call{}, err
	}
	amount, err := r.amount(amountField)
	if err != nil {
		return domain.Call{}, err
	}
	due, err := r.timestamp(FieldDueDate)
	if err != nil {
		return domain.Call{}, err
	}
	assignee, err := r.address(FieldAssignee)
	if err != nil {
		return domain.Call{}, err
	}
	return e.commune(r.kind, method, communeID, amount, desc, due, assignee)
}

func (e *Encoder) encodeDispute(r argReader, method, idField string, communeID *big.Int) (domain.Call, error) {
	id, err := r.id(idField)
	if err != nil {
		return domain.Call{}, err
	}
	newAssignee, err := r.address(FieldNewAssignee)
	if err != nil {
		return domain.Call{}, err
	}
	return e.commune(r.kind, method, communeID, id, newAssignee)
}

func (e *Encoder) encodeApprove(r argReader) (domain.Call, error) {
	spender := e.cfg.CollateralManager
	if v := r.args.Get(FieldSpender); v != "" {
		addr, err := r.parseAddress(FieldSpender, v)
		if err != nil {
			return domain.Call{}, err
		}
		spender = addr
	}
	if spender == (common.Address{}) {
		return domain.Call{}, r.fail(FieldSpender, "missing", nil)
	}
	amount, err := r.amount(FieldAmount)
	if err != nil {
		return domain.Call{}, err
	}
	return pack(r.kind, contract.ERC20, e.cfg.Token, "approve", spender, amount)
}

func (e *Encoder) commune(kind domain.ActionKind, method string, args ...any) (domain.Call, error) {
	return pack(kind, contract.Commune, e.cfg.Commune, method, args...)
}

func pack(kind domain.ActionKind, parsed abi.ABI, to common.Address, method string, args ...any) (domain.Call, error) {
	if to == (common.Address{}) {
		return domain.Call{}, &txerr.EncodingError{Kind: string(kind), Reason: fmt.Sprintf("no contract address configured for %s", method)}
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return domain.Call{}, &txerr.EncodingError{Kind: string(kind), Reason: "abi pack " + method, Cause: err}
	}
	return domain.Call{To: to.Hex(), Data: data, Method: method}, nil
}

func choreInstance(r argReader) (*big.Int, *big.Int, error) {
	choreID, err := r.id(FieldChoreID)
	if err != nil {
		return nil, nil, err
	}
	periodStr, err := r.required(FieldPeriod)
	if err != nil {
		return nil, nil, err
	}
	period, err := r.uint(FieldPeriod, periodStr)
	if err != nil {
		return nil, nil, err
	}
	return choreID, period, nil
}
