package db

import (
	"context"
	"time"
)

// KeyRetention bounds how long processed payment keys are kept. Transaction
// numbers are unique, so a key only needs to outlive bank redelivery.
const KeyRetention = 24 * time.Hour

type cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// JanitorJob prunes expired idempotency keys once per simulated day.
type JanitorJob struct {
	store     cleaner
	retention time.Duration
}

func NewJanitorJob(store cleaner, retention time.Duration) *JanitorJob {
	return &JanitorJob{store: store, retention: retention}
}

func (j *JanitorJob) Name() string { return "prune_idempotency_keys" }

func (j *JanitorJob) Run(ctx context.Context) error {
	return j.store.Cleanup(ctx, j.retention)
}
