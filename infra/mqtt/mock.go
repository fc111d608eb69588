package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/courierops/dispatchd/core/model"
)

// MockNotifier is a simple notifier used in tests.
type MockNotifier struct {
	mu      sync.Mutex
	Sent    []model.AssignmentResult
	FailFor map[string]bool
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailFor: make(map[string]bool)}
}

// NotifyAssignment records the message or returns an error if configured to
// fail for the courier.
func (m *MockNotifier) NotifyAssignment(_ context.Context, res model.AssignmentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[res.CourierID] {
		return fmt.Errorf("publish failed for courier %s", res.CourierID)
	}
	m.Sent = append(m.Sent, res)
	return nil
}

// SentCount returns how many notifications were recorded.
func (m *MockNotifier) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
