// Package readmodel builds read-model snapshots from the commune contract's view
// functions.
package readmodel

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/infra/contract"
	"github.com/vietddude/commune/internal/txcore/encoder"
)

// Caller runs read-only contract calls. chain.Adapter implements it.
type Caller interface {
	CallContract(ctx context.Context, from common.Address, call domain.Call) ([]byte, error)
}

type Reader struct {
	caller  Caller
	commune common.Address
	now     func() time.Time
	log     *slog.Logger
}

func NewReader(caller Caller, commune common.Address) *Reader {
	return &Reader{
		caller:  caller,
		commune: commune,
		now:     time.Now,
		log:     slog.Default().With("component", "readmodel"),
	}
}

// Snapshot reads everything user's commune shows for chores due between from
// and to. A user without a commune gets an empty snapshot.
func (r *Reader) Snapshot(ctx context.Context, user string, from, to time.Time) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{FetchedAt: r.now()}
	if !common.IsHexAddress(user) {
		return nil, fmt.Errorf("invalid user address %q", user)
	}
	account := common.HexToAddress(user)

	out, err := r.call(ctx, account, "getUserCommune", account)
	if err != nil {
		return nil, err
	}
	id := out[0].(*big.Int)
	if id.Sign() == 0 {
		return snap, nil
	}
	snap.Commune = &domain.Commune{
		ID:                 id.Uint64(),
		Name:               out[1].(string),
		Creator:            out[2].(common.Address).Hex(),
		CollateralRequired: out[3].(bool),
		CollateralAmount:   encoder.FormatAmount(out[4].(*big.Int)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Members, err = r.members(gctx, account, id)
		return err
	})
	g.Go(func() (err error) {
		snap.Schedules, err = r.schedules(gctx, account, id)
		return err
	})
	g.Go(func() (err error) {
		snap.Chores, err = r.chores(gctx, account, id, from, to)
		return err
	})
	g.Go(func() (err error) {
		snap.Tasks, err = r.tasks(gctx, account, id)
		return err
	})
	g.Go(func() (err error) {
		snap.Expenses, err = r.expenses(gctx, account, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.log.Debug("Snapshot fetched",
		"commune", snap.Commune.ID,
		"members", len(snap.Members),
		"chores", len(snap.Chores),
		"tasks", len(snap.Tasks),
		"expenses", len(snap.Expenses))
	return snap, nil
}

func (r *Reader) members(ctx context.Context, from common.Address, id *big.Int) ([]domain.Member, error) {
	out, err := r.call(ctx, from, "getCommuneMembers", id)
	if err != nil {
		return nil, err
	}
	addrs, names := out[0].([]common.Address), out[1].([]string)
	if len(addrs) != len(names) {
		return nil, malformed("getCommuneMembers")
	}
	members := make([]domain.Member, len(addrs))
	for i := range addrs {
		members[i] = domain.Member{Address: addrs[i].Hex(), Username: names[i]}
	}
	return members, nil
}

func (r *Reader) schedules(ctx context.Context, from common.Address, id *big.Int) ([]domain.ChoreSchedule, error) {
	out, err := r.call(ctx, from, "getChoreSchedules", id)
	if err != nil {
		return nil, err
	}
	ids, titles := out[0].([]*big.Int), out[1].([]string)
	freqs, starts := out[2].([]*big.Int), out[3].([]*big.Int)
	if !sameLen(len(ids), len(titles), len(freqs), len(starts)) {
		return nil, malformed("getChoreSchedules")
	}
	schedules := make([]domain.ChoreSchedule, len(ids))
	for i := range ids {
		schedules[i] = domain.ChoreSchedule{
			ID:        ids[i].Uint64(),
			Title:     titles[i],
			Frequency: time.Duration(freqs[i].Int64()) * time.Second,
			StartTime: unix(starts[i]),
		}
	}
	return schedules, nil
}

func (r *Reader) chores(ctx context.Context, account common.Address, id *big.Int, from, to time.Time) ([]domain.ChoreInstance, error) {
	out, err := r.call(ctx, account, "getChoreInstances", id, big.NewInt(from.Unix()), big.NewInt(to.Unix()))
	if err != nil {
		return nil, err
	}
	scheduleIDs, periods, titles := out[0].([]*big.Int), out[1].([]*big.Int), out[2].([]string)
	assignees, completed := out[3].([]common.Address), out[4].([]bool)
	if !sameLen(len(scheduleIDs), len(periods), len(titles), len(assignees), len(completed)) {
		return nil, malformed("getChoreInstances")
	}
	chores := make([]domain.ChoreInstance, len(scheduleIDs))
	for i := range scheduleIDs {
		chores[i] = domain.ChoreInstance{
			ScheduleID: scheduleIDs[i].Uint64(),
			Period:     periods[i].Uint64(),
			Title:      titles[i],
			Assignee:   assignees[i].Hex(),
			Completed:  completed[i],
		}
	}
	return chores, nil
}

func (r *Reader) tasks(ctx context.Context, from common.Address, id *big.Int) ([]domain.Task, error) {
	out, err := r.call(ctx, from, "getTasks", id)
	if err != nil {
		return nil, err
	}
	rows, err := ledgerRows("getTasks", out)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, len(rows))
	for i, row := range rows {
		tasks[i] = domain.Task{
			ID:          row.id,
			Description: row.description,
			Budget:      row.amount,
			Assignee:    row.assignee,
			DueDate:     row.due,
			Done:        row.settled,
			Disputed:    row.disputed,
		}
	}
	return tasks, nil
}

func (r *Reader) expenses(ctx context.Context, from common.Address, id *big.Int) ([]domain.Expense, error) {
	out, err := r.call(ctx, from, "getExpenses", id)
	if err != nil {
		return nil, err
	}
	rows, err := ledgerRows("getExpenses", out)
	if err != nil {
		return nil, err
	}
	expenses := make([]domain.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = domain.Expense{
			ID:          row.id,
			Description: row.description,
			Amount:      row.amount,
			Assignee:    row.assignee,
			DueDate:     row.due,
			Paid:        row.settled,
			Disputed:    row.disputed,
		}
	}
	return expenses, nil
}

// ledgerRow is the shared shape of getTasks and getExpenses.
type ledgerRow struct {
	id          uint64
	description string
	amount      string
	due         time.Time
	assignee    string
	settled     bool
	disputed    bool
}

func ledgerRows(method string, out []any) ([]ledgerRow, error) {
	ids, descs, amounts := out[0].([]*big.Int), out[1].([]string), out[2].([]*big.Int)
	dues, assignees := out[3].([]*big.Int), out[4].([]common.Address)
	settled, disputed := out[5].([]bool), out[6].([]bool)
	if !sameLen(len(ids), len(descs), len(amounts), len(dues), len(assignees), len(settled), len(disputed)) {
		return nil, malformed(method)
	}
	rows := make([]ledgerRow, len(ids))
	for i := range ids {
		rows[i] = ledgerRow{
			id:          ids[i].Uint64(),
			description: descs[i],
			amount:      encoder.FormatAmount(amounts[i]),
			due:         unix(dues[i]),
			assignee:    assignees[i].Hex(),
			settled:     settled[i],
			disputed:    disputed[i],
		}
	}
	return rows, nil
}

func (r *Reader) call(ctx context.Context, from common.Address, method string, args ...any) ([]any, error) {
	return callView(ctx, r.caller, from, r.commune, contract.Commune, method, args...)
}

func callView(ctx context.Context, caller Caller, from, to common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := caller.CallContract(ctx, from, domain.Call{To: to.Hex(), Data: data, Method: method})
	if err != nil {
		return nil, err
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func malformed(method string) error {
	return fmt.Errorf("%s returned columns of different lengths", method)
}

func sameLen(n ...int) bool {
	for _, v := range n[1:] {
		if v != n[0] {
			return false
		}
	}
	return true
}

func unix(v *big.Int) time.Time {
	return time.Unix(v.Int64(), 0).UTC()
}

// Allowance returns how much of token owner has approved spender to move.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (string, error) {
	out, err := callView(ctx, r.caller, owner, token, contract.ERC20, "allowance", owner, spender)
	if err != nil {
		return "", err
	}
	return encoder.FormatAmount(out[0].(*big.Int)), nil
}
