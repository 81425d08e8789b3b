package workflow

import (
	"context"

	"ambo/internal/queue"
)

// StageHandler describes the contract the manager needs from each stage.
type StageHandler interface {
	Prepare(context.Context, *queue.Recording) error
	Execute(context.Context, *queue.Recording) error
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a workflow stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
