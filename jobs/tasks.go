// Package jobs carries the asynchronous pickup fulfilment pipeline on top
// of Asynq. Procurement enqueues a pickup request per purchase; the worker
// books the shipment with logistics and pays for it, retrying on failure.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueuePickup is the queue carrying pickup fulfilment tasks.
	QueuePickup = "pickup"
	// TaskTypePickupRequest books and pays for one supplier pickup.
	TaskTypePickupRequest = "pickup:request"
)

// PickupItem is one cargo line of a pickup request. Machines ship by weight
// in kilograms, everything else by unit count.
type PickupItem struct {
	ItemName string `json:"itemName"`
	Quantity int64  `json:"quantity"`
}

// PickupPayload identifies the purchase to collect and where from.
type PickupPayload struct {
	OriginalExternalOrderID string       `json:"originalExternalOrderId"`
	OriginCompany           string       `json:"originCompany"`
	Items                   []PickupItem `json:"items"`
}

// NewPickupTask constructs the Asynq task. The task id combines the order
// reference with the enqueue time so a re-run of the same purchase flow
// cannot double-book while the first task is still in flight.
func NewPickupTask(payload PickupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s-%d", payload.OriginalExternalOrderID, time.Now().UnixMilli())
	return asynq.NewTask(TaskTypePickupRequest, data,
		asynq.Queue(QueuePickup),
		asynq.TaskID(id),
		asynq.MaxRetry(20),
		asynq.Timeout(30*time.Second),
	), nil
}
