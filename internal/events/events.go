package events

import (
	"context"
	"log"
	"sync"
	"time"

	"student-deals-admin-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventStatsComputed is emitted after a dashboard aggregation succeeds
	EventStatsComputed EventType = "stats.computed"
	// EventStudentStatsViewed is emitted after an admin views a student detail
	EventStudentStatsViewed EventType = "student.stats.viewed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// StatsComputedData contains data for stats computed events.
type StatsComputedData struct {
	Stats      models.DashboardStats
	ComputedAt time.Time
}

// StudentStatsViewedData contains data for student stats viewed events.
type StudentStatsViewedData struct {
	StudentID string
	ViewedAt  time.Time
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Handlers run asynchronously so audit hooks never delay a response
	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				log.Printf("Event handler error for %s: %v", eventType, err)
			}
		}(handler)
	}
}

// PublishStatsComputed publishes a stats computed event.
func (m *Manager) PublishStatsComputed(ctx context.Context, stats models.DashboardStats) {
	m.Publish(ctx, EventStatsComputed, StatsComputedData{
		Stats:      stats,
		ComputedAt: time.Now(),
	})
}

// PublishStudentStatsViewed publishes a student stats viewed event.
func (m *Manager) PublishStudentStatsViewed(ctx context.Context, studentID string) {
	m.Publish(ctx, EventStudentStatsViewed, StudentStatsViewedData{
		StudentID: studentID,
		ViewedAt:  time.Now(),
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
