package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// integrityUniqueFor collapses bursts of close events into one queued check.
const integrityUniqueFor = 5 * time.Minute

// Client submits ledger tasks.
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueIntegrity queues an integrity check. An identical payload already
// waiting in the queue is reported as asynq.ErrDuplicateTask.
func (c *Client) EnqueueIntegrity(ctx context.Context, payload IntegrityPayload) (*asynq.TaskInfo, error) {
	task, err := NewIntegrityTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueLedger),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Unique(integrityUniqueFor))
}

func (c *Client) Close() error {
	return c.client.Close()
}
