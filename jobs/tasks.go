package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueLedger carries ledger maintenance work ahead of anything else.
	QueueLedger = "ledger"
	// QueueDefault picks up tasks enqueued without a queue option.
	QueueDefault = "default"
	// TaskLedgerIntegrity verifies the accounting equation and cached balances.
	TaskLedgerIntegrity = "ledger:integrity"
)

// IntegrityPayload scopes an integrity run. Empty CompanyIDs checks every
// company; a nil AsOf checks as of the run date.
type IntegrityPayload struct {
	CompanyIDs []int64    `json:"company_ids,omitempty"`
	AsOf       *time.Time `json:"as_of,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// NewIntegrityTask constructs an Asynq task.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
