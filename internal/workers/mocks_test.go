package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/google/uuid"
)

// mockReports is a mock implementation of ReportGenerator
type mockReports struct {
	generateFunc func(ctx context.Context) (*models.Report, error)
	latestFunc   func(ctx context.Context, userID uuid.UUID) (*models.Report, error)

	mu        sync.Mutex
	generated int
}

func (m *mockReports) GenerateWeekly(ctx context.Context) (*models.Report, error) {
	m.mu.Lock()
	m.generated++
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(ctx)
	}
	return &models.Report{ID: uuid.New(), Kind: models.ReportKindWeekly, Content: "report"}, nil
}

func (m *mockReports) LatestWeekly(ctx context.Context, userID uuid.UUID) (*models.Report, error) {
	if m.latestFunc != nil {
		return m.latestFunc(ctx, userID)
	}
	return nil, fmt.Errorf("report not found: %w", database.ErrNotFound)
}

func (m *mockReports) generateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generated
}

var _ ReportGenerator = (*mockReports)(nil)

// mockPublisher is a mock implementation of queue.Publisher
type mockPublisher struct {
	enqueueFunc func(ctx context.Context, job *queue.Job) error

	mu   sync.Mutex
	jobs []*queue.Job
}

func (m *mockPublisher) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockPublisher) enqueued() []*queue.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*queue.Job(nil), m.jobs...)
}

var _ queue.Publisher = (*mockPublisher)(nil)

// mockMessage is a mock implementation of queue.MessageInterface
type mockMessage struct {
	job *queue.Job

	acked    bool
	nacked   bool
	requeued bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeued = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

var _ queue.MessageInterface = (*mockMessage)(nil)

// mockUsers is a mock implementation of UserLister
type mockUsers struct {
	listFunc func(ctx context.Context) ([]uuid.UUID, error)
}

func (m *mockUsers) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

var _ UserLister = (*mockUsers)(nil)
