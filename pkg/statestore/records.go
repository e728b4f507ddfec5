package statestore

import (
	"time"

	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/forgeswarm/coordinator/pkg/router"
)

// TaskStatus is the lifecycle state of an EnsembleTask row.
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// VotingStrategy names how ModelResults for a task are reconciled into
// one VoteRecord.
type VotingStrategy int

const (
	VotingMajority VotingStrategy = iota
	VotingFirstSuccess
	VotingWeighted
)

func (v VotingStrategy) String() string {
	switch v {
	case VotingMajority:
		return "majority"
	case VotingFirstSuccess:
		return "first_success"
	case VotingWeighted:
		return "weighted"
	default:
		return "unknown"
	}
}

// SessionRecord is the sess: column family row: one per ensemble
// session.
type SessionRecord struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TaskIDs   []string  `json:"task_ids"`
}

// TaskRecord is the task: column family row: one per unit of
// escalation work within a session.
type TaskRecord struct {
	ID        string               `json:"id"`
	SessionID string               `json:"session_id"`
	Status    TaskStatus           `json:"status"`
	Tier      escalation.SwarmTier `json:"tier"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// ModelResult is one model's outcome on a task, stored under
// result:<task>:<model>.
type ModelResult struct {
	TaskID    string         `json:"task_id"`
	ModelID   router.ModelId `json:"model_id"`
	Success   bool           `json:"success"`
	DiffRef   string         `json:"diff_ref,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// VoteRecord is the vote:<task> column family row reconciling that
// task's ModelResults.
type VoteRecord struct {
	TaskID    string         `json:"task_id"`
	Strategy  VotingStrategy `json:"strategy"`
	Winner    router.ModelId `json:"winner,omitempty"`
	Tally     map[string]int `json:"tally,omitempty"`
	DecidedAt time.Time      `json:"decided_at"`
}

// SharedContext is the ctx:<session> column family row: free-form
// shared state visible to every task in a session.
type SharedContext struct {
	SessionID string            `json:"session_id"`
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Event is the evt: column family row. Its key is derived from At and
// ID; AppendEvent fills an empty ID with a fresh uuid, so appends
// without an ID never collide, while two appends with the same At and
// the same caller-supplied ID share one key.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Type      string    `json:"type"`
	Payload   []byte    `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}
