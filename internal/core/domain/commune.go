package domain

import "time"

// Commune is the household group recorded on-chain.
type Commune struct {
	ID                 uint64
	Name               string
	Creator            string
	CollateralRequired bool
	CollateralAmount   string
}

// Member is a commune participant.
type Member struct {
	Address  string
	Username string
}

// ChoreSchedule is a recurring chore definition.
type ChoreSchedule struct {
	ID        uint64
	Title     string
	Frequency time.Duration
	StartTime time.Time
}

// ChoreInstance is one period of a chore schedule.
type ChoreInstance struct {
	ScheduleID uint64
	Period     uint64
	Title      string
	Assignee   string
	Completed  bool
}

// ID returns the compound instance id.
func (c ChoreInstance) ID() string {
	return ChoreInstanceID(c.ScheduleID, c.Period)
}

// Task is a one-off budgeted job.
type Task struct {
	ID          uint64
	Description string
	Budget      string
	Assignee    string
	DueDate     time.Time
	Done        bool
	Disputed    bool
}

// Expense is a shared cost assigned to a member.
type Expense struct {
	ID          uint64
	Description string
	Amount      string
	Assignee    string
	DueDate     time.Time
	Paid        bool
	Disputed    bool
}

// Snapshot is a point-in-time copy of the read model for one user.
type Snapshot struct {
	Commune   *Commune
	Members   []Member
	Schedules []ChoreSchedule
	Chores    []ChoreInstance
	Tasks     []Task
	Expenses  []Expense
	FetchedAt time.Time
}
