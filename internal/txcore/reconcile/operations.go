package reconcile

import (
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/txcore/encoder"
	"github.com/vietddude/commune/internal/view"
)

// Input is what an OperationSpec sees of a request.
type Input struct {
	Args    encoder.Args
	Account string
}

// OperationSpec parametrizes the coordinator for one action kind.
type OperationSpec struct {
	Kind   domain.ActionKind
	Entity domain.EntityType

	// RequiredFields are checked by the submission gate.
	RequiredFields []string

	// TargetField names the argument holding the target id. Target overrides it.
	TargetField string
	Target      func(in Input) string

	// NeedsOnChainID rejects placeholder targets.
	NeedsOnChainID bool

	// Creates inserts a placeholder entity instead of mutating the target.
	Creates bool

	// Optimistic returns the field changes applied before confirmation.
	Optimistic func(in Input) map[string]any

	SuccessMessage string
	FailureMessage string
}

// target is canonical so that every spelling of one on-chain entity reserves
// the same key and mutates the rendered entity.
func (s OperationSpec) target(in Input) string {
	if s.Target != nil {
		return encoder.CanonicalID(s.Target(in))
	}
	return encoder.CanonicalID(in.Args.Get(s.TargetField))
}

func set(field string, v any) func(Input) map[string]any {
	return func(Input) map[string]any { return map[string]any{field: v} }
}

func copyArgs(pairs ...string) func(Input) map[string]any {
	return func(in Input) map[string]any {
		out := make(map[string]any, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			out[pairs[i]] = in.Args.Get(pairs[i+1])
		}
		return out
	}
}

func choreTarget(in Input) string {
	choreID, period := in.Args.Get(encoder.FieldChoreID), in.Args.Get(encoder.FieldPeriod)
	if choreID == "" || period == "" {
		return ""
	}
	return encoder.CanonicalID(choreID) + "-" + encoder.CanonicalID(period)
}

// Operations lists the OperationSpec of every supported action kind.
var Operations = map[domain.ActionKind]OperationSpec{
	domain.ActionJoinCommune: {
		Kind:           domain.ActionJoinCommune,
		Entity:         domain.EntityMember,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldNonce, encoder.FieldSignature, encoder.FieldUsername},
		Target:         func(in Input) string { return in.Account },
		Optimistic:     copyArgs(view.FieldUsername, encoder.FieldUsername),
		SuccessMessage: "Joined commune",
		FailureMessage: "Failed to join commune",
	},
	domain.ActionCreateChoreSchedule: {
		Kind:           domain.ActionCreateChoreSchedule,
		Entity:         domain.EntityChoreSchedule,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldTitle, encoder.FieldFrequency, encoder.FieldStartTime},
		Creates:        true,
		Optimistic: copyArgs(
			view.FieldTitle, encoder.FieldTitle,
			view.FieldFrequency, encoder.FieldFrequency,
			view.FieldStartTime, encoder.FieldStartTime,
		),
		SuccessMessage: "Chore created",
		FailureMessage: "Failed to create chore",
	},
	domain.ActionRemoveChoreSchedule: {
		Kind:           domain.ActionRemoveChoreSchedule,
		Entity:         domain.EntityChoreSchedule,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldChoreID},
		TargetField:    encoder.FieldChoreID,
		NeedsOnChainID: true,
		Optimistic:     set(view.FieldRemoved, true),
		SuccessMessage: "Chore removed",
		FailureMessage: "Failed to remove chore",
	},
	domain.ActionMarkChoreComplete: {
		Kind:           domain.ActionMarkChoreComplete,
		Entity:         domain.EntityChoreInstance,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldChoreID, encoder.FieldPeriod},
		TargetField:    encoder.FieldChoreID,
		Target:         choreTarget,
		NeedsOnChainID: true,
		Optimistic:     set(view.FieldCompleted, true),
		SuccessMessage: "Chore marked as complete",
		FailureMessage: "Failed to mark chore as complete",
	},
	domain.ActionReassignChore: {
		Kind:           domain.ActionReassignChore,
		Entity:         domain.EntityChoreInstance,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldChoreID, encoder.FieldPeriod, encoder.FieldAssignee},
		TargetField:    encoder.FieldChoreID,
		Target:         choreTarget,
		NeedsOnChainID: true,
		Optimistic:     copyArgs(view.FieldAssignee, encoder.FieldAssignee),
		SuccessMessage: "Chore reassigned",
		FailureMessage: "Failed to reassign chore",
	},
	domain.ActionCreateTask: {
		Kind:           domain.ActionCreateTask,
		Entity:         domain.EntityTask,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldDescription, encoder.FieldBudget, encoder.FieldDueDate, encoder.FieldAssignee},
		Creates:        true,
		Optimistic: func(in Input) map[string]any {
			fields := copyArgs(
				view.FieldDescription, encoder.FieldDescription,
				view.FieldBudget, encoder.FieldBudget,
				view.FieldDueDate, encoder.FieldDueDate,
				view.FieldAssignee, encoder.FieldAssignee,
			)(in)
			fields[view.FieldDone] = false
			fields[view.FieldDisputed] = false
			return fields
		},
		SuccessMessage: "Task created",
		FailureMessage: "Failed to create task",
	},
	domain.ActionMarkTaskDone: {
		Kind:           domain.ActionMarkTaskDone,
		Entity:         domain.EntityTask,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldTaskID},
		TargetField:    encoder.FieldTaskID,
		NeedsOnChainID: true,
		Optimistic:     set(view.FieldDone, true),
		SuccessMessage: "Task marked as done",
		FailureMessage: "Failed to mark task as done",
	},
	domain.ActionDisputeTask: {
		Kind:           domain.ActionDisputeTask,
		Entity:         domain.EntityTask,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldTaskID, encoder.FieldNewAssignee},
		TargetField:    encoder.FieldTaskID,
		NeedsOnChainID: true,
		Optimistic:     set(view.FieldDisputed, true),
		SuccessMessage: "Dispute created",
		FailureMessage: "Failed to dispute task",
	},
	domain.ActionCreateExpense: {
		Kind:           domain.ActionCreateExpense,
		Entity:         domain.EntityExpense,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldDescription, encoder.FieldAmount, encoder.FieldDueDate, encoder.FieldAssignee},
		Creates:        true,
		Optimistic: func(in Input) map[string]any {
			fields := copyArgs(
				view.FieldDescription, encoder.FieldDescription,
				view.FieldAmount, encoder.FieldAmount,
				view.FieldDueDate, encoder.FieldDueDate,
				view.FieldAssignee, encoder.FieldAssignee,
			)(in)
			fields[view.FieldPaid] = false
			fields[view.FieldDisputed] = false
			return fields
		},
		SuccessMessage: "Expense created",
		FailureMessage: "Failed to create expense",
	},
	domain.ActionMarkExpensePaid: {
		Kind:           domain.ActionMarkExpensePaid,
		Entity:         domain.EntityExpense,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldExpenseID},
		TargetField:    encoder.FieldExpenseID,
		NeedsOnChainID: true,
		Optimistic:     set(view.FieldPaid, true),
		SuccessMessage: "Expense marked as paid",
		FailureMessage: "Failed to mark expense as paid",
	},
	domain.ActionDisputeExpense: {
		Kind:           domain.ActionDisputeExpense,
		Entity:         domain.EntityExpense,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldExpenseID, encoder.FieldNewAssignee},
		TargetField:    encoder.FieldExpenseID,
		NeedsOnChainID: true,
		Optimistic:     set(view.FieldDisputed, true),
		SuccessMessage: "Dispute created",
		FailureMessage: "Failed to dispute expense",
	},
	domain.ActionRemoveMember: {
		Kind:           domain.ActionRemoveMember,
		Entity:         domain.EntityMember,
		RequiredFields: []string{encoder.FieldCommuneID, encoder.FieldMember},
		TargetField:    encoder.FieldMember,
		Optimistic:     set(view.FieldRemoved, true),
		SuccessMessage: "Member removed",
		FailureMessage: "Failed to remove member",
	},
	domain.ActionApproveAllowance: {
		Kind:           domain.ActionApproveAllowance,
		Entity:         domain.EntityAllowance,
		RequiredFields: []string{encoder.FieldAmount},
		TargetField:    encoder.FieldSpender,
		Target: func(in Input) string {
			if spender := in.Args.Get(encoder.FieldSpender); spender != "" {
				return spender
			}
			return "collateral"
		},
		Optimistic:     copyArgs(view.FieldApproved, encoder.FieldAmount),
		SuccessMessage: "Allowance approved",
		FailureMessage: "Failed to approve allowance",
	},
}
