package domain

import "time"

// ActionKind identifies one mutating commune operation.
type ActionKind string

const (
	ActionJoinCommune         ActionKind = "join_commune"
	ActionCreateChoreSchedule ActionKind = "create_chore_schedule"
	ActionRemoveChoreSchedule ActionKind = "remove_chore_schedule"
	ActionMarkChoreComplete   ActionKind = "mark_chore_complete"
	ActionReassignChore       ActionKind = "reassign_chore"
	ActionCreateTask          ActionKind = "create_task"
	ActionMarkTaskDone        ActionKind = "mark_task_done"
	ActionDisputeTask         ActionKind = "dispute_task"
	ActionCreateExpense       ActionKind = "create_expense"
	ActionMarkExpensePaid     ActionKind = "mark_expense_paid"
	ActionDisputeExpense      ActionKind = "dispute_expense"
	ActionRemoveMember        ActionKind = "remove_member"
	ActionApproveAllowance    ActionKind = "approve_allowance"
)

// AllActionKinds lists every supported kind in a stable order.
var AllActionKinds = []ActionKind{
	ActionJoinCommune,
	ActionCreateChoreSchedule,
	ActionRemoveChoreSchedule,
	ActionMarkChoreComplete,
	ActionReassignChore,
	ActionCreateTask,
	ActionMarkTaskDone,
	ActionDisputeTask,
	ActionCreateExpense,
	ActionMarkExpensePaid,
	ActionDisputeExpense,
	ActionRemoveMember,
	ActionApproveAllowance,
}

// Valid reports whether k is a known kind.
func (k ActionKind) Valid() bool {
	for _, known := range AllActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ActionStatus is the lifecycle state of a PendingAction.
type ActionStatus string

const (
	ActionStatusIdle       ActionStatus = "idle"
	ActionStatusSubmitting ActionStatus = "submitting"
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusConfirmed  ActionStatus = "confirmed"
	ActionStatusFailed     ActionStatus = "failed"
)

// PendingAction is one in-flight mutating operation.
type PendingAction struct {
	ID            string       `json:"id"`
	Kind          ActionKind   `json:"kind"`
	TargetID      string       `json:"target_id"`
	SubmittedHash string       `json:"submitted_hash,omitempty"`
	Status        ActionStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Error         string       `json:"error,omitempty"`
}

// Terminal reports whether the action reached Confirmed or Failed.
func (a *PendingAction) Terminal() bool {
	return a.Status == ActionStatusConfirmed || a.Status == ActionStatusFailed
}
