package view

import (
	"strconv"

	"github.com/vietddude/commune/internal/core/domain"
)

// Field names of entity view models.
const (
	FieldCompleted   = "completed"
	FieldAssignee    = "assignee"
	FieldTitle       = "title"
	FieldPeriod      = "period"
	FieldScheduleID  = "schedule_id"
	FieldFrequency   = "frequency"
	FieldStartTime   = "start_time"
	FieldDescription = "description"
	FieldBudget      = "budget"
	FieldAmount      = "amount"
	FieldDueDate     = "due_date"
	FieldDone        = "done"
	FieldPaid        = "paid"
	FieldDisputed    = "disputed"
	FieldUsername    = "username"
	FieldName        = "name"
	FieldCreator     = "creator"
	FieldMember      = "member"
	FieldRemoved     = "removed"
	FieldApproved    = "approved"
)

// Entities projects a snapshot into confirmed view models.
func Entities(snap *domain.Snapshot) []domain.OptimisticEntity {
	if snap == nil {
		return nil
	}
	confirmed := func(t domain.EntityType, id string, fields map[string]any) domain.OptimisticEntity {
		return domain.OptimisticEntity{
			ID:        id,
			Type:      t,
			Status:    domain.EntityConfirmed,
			Fields:    fields,
			MutatedAt: snap.FetchedAt,
		}
	}

	var out []domain.OptimisticEntity
	if c := snap.Commune; c != nil {
		out = append(out, confirmed(domain.EntityCommune, strconv.FormatUint(c.ID, 10), map[string]any{
			FieldName:    c.Name,
			FieldCreator: c.Creator,
		}))
	}
	for _, m := range snap.Members {
		out = append(out, confirmed(domain.EntityMember, m.Address, map[string]any{
			FieldUsername: m.Username,
		}))
	}
	for _, sc := range snap.Schedules {
		out = append(out, confirmed(domain.EntityChoreSchedule, strconv.FormatUint(sc.ID, 10), map[string]any{
			FieldTitle:     sc.Title,
			FieldFrequency: sc.Frequency,
			FieldStartTime: sc.StartTime,
		}))
	}
	for _, ch := range snap.Chores {
		out = append(out, confirmed(domain.EntityChoreInstance, ch.ID(), map[string]any{
			FieldScheduleID: ch.ScheduleID,
			FieldPeriod:     ch.Period,
			FieldTitle:      ch.Title,
			FieldAssignee:   ch.Assignee,
			FieldCompleted:  ch.Completed,
		}))
	}
	for _, t := range snap.Tasks {
		out = append(out, confirmed(domain.EntityTask, strconv.FormatUint(t.ID, 10), map[string]any{
			FieldDescription: t.Description,
			FieldBudget:      t.Budget,
			FieldAssignee:    t.Assignee,
			FieldDueDate:     t.DueDate,
			FieldDone:        t.Done,
			FieldDisputed:    t.Disputed,
		}))
	}
	for _, x := range snap.Expenses {
		out = append(out, confirmed(domain.EntityExpense, strconv.FormatUint(x.ID, 10), map[string]any{
			FieldDescription: x.Description,
			FieldAmount:      x.Amount,
			FieldAssignee:    x.Assignee,
			FieldDueDate:     x.DueDate,
			FieldPaid:        x.Paid,
			FieldDisputed:    x.Disputed,
		}))
	}
	return out
}
