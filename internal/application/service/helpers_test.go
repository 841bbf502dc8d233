package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/ncr-tracker/internal/application/port"
	"github.com/garyjia/ncr-tracker/internal/domain/apperr"
	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/domain/event"
	"github.com/garyjia/ncr-tracker/internal/domain/policy"
	"github.com/garyjia/ncr-tracker/internal/infrastructure/persistence/memory"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) Types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]event.Type, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

type memoryAttachments struct {
	mu      sync.Mutex
	n       int
	files   map[string][]byte
	deleted []string
}

func newMemoryAttachments() *memoryAttachments {
	return &memoryAttachments{files: make(map[string][]byte)}
}

func (m *memoryAttachments) Save(ctx context.Context, name string, content []byte) (string, error) {
	if strings.HasSuffix(name, ".exe") {
		return "", apperr.Validation("file type not allowed", "attachment")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	ref := fmt.Sprintf("ncr-%d-%s", m.n, name)
	m.files[ref] = content
	return ref, nil
}

func (m *memoryAttachments) Open(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[ref]
	if !ok {
		return nil, apperr.NotFound("attachment", ref)
	}
	return content, nil
}

func (m *memoryAttachments) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, ref)
	m.deleted = append(m.deleted, ref)
	return nil
}

// pipeExporter renders rows as pipe-separated text so tests can inspect them
type pipeExporter struct{}

func (pipeExporter) Format() string    { return "pipe" }
func (pipeExporter) MimeType() string  { return "text/plain" }
func (pipeExporter) Extension() string { return ".txt" }

func (pipeExporter) Write(columns []port.Column, rows [][]port.Cell) ([]byte, error) {
	var b strings.Builder
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
	}
	b.WriteString(strings.Join(headers, "|") + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if c.Time != nil {
				cells[i] = c.Time.Format("2006-01-02")
			} else {
				cells[i] = c.Text
			}
		}
		b.WriteString(strings.Join(cells, "|") + "\n")
	}
	return []byte(b.String()), nil
}

type ncrFixture struct {
	svc         NCRService
	repo        *memory.NCRRepository
	seq         *memory.SequenceRepository
	attachments *memoryAttachments
	events      *recordingPublisher
	clock       *fixedClock
}

func newNCRFixture(cfg NCRServiceConfig, pcfg policy.Config) *ncrFixture {
	f := &ncrFixture{
		repo:        memory.NewNCRRepository(),
		seq:         memory.NewSequenceRepository(),
		attachments: newMemoryAttachments(),
		events:      &recordingPublisher{},
		clock:       &fixedClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = NewNCRService(
		cfg,
		f.repo,
		f.seq,
		memory.NewTxManager(),
		f.attachments,
		[]port.TabularExporter{pipeExporter{}},
		policy.New(pcfg),
		f.events,
		f.clock,
		&mockLogger{},
	)
	return f
}

func principalWith(id int64, role entity.Role) *entity.Principal {
	return &entity.Principal{ID: id, Name: "Jane Doe", EmployeeID: fmt.Sprintf("EMP-%03d", id), Role: role}
}

func validInput() CreateNCRInput {
	return CreateNCRInput{
		Severity:    "major",
		Description: "Burr on flange edge",
		Department:  "QA",
		SourceType:  "Incoming Inspection",
		Area:        "Machining Cell 3",
	}
}
