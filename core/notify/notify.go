package notify

import (
	"context"

	"github.com/courierops/dispatchd/core/model"
)

// Notifier pushes an accepted assignment to the courier's device. The engine
// never notifies anyone itself; the sweep loop calls the notifier after a
// decision has been committed.
type Notifier interface {
	NotifyAssignment(ctx context.Context, res model.AssignmentResult) error
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyAssignment(context.Context, model.AssignmentResult) error { return nil }
