package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
)

type stubOutboxRepo struct {
	pending    []domain.OutboxEvent
	dispatched []int64
	failed     []int64
	dead       []int64
	attempts   map[int64]int
}

func (r *stubOutboxRepo) FetchPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *stubOutboxRepo) MarkDispatched(_ context.Context, id int64) error {
	r.dispatched = append(r.dispatched, id)
	return nil
}

func (r *stubOutboxRepo) MarkFailed(_ context.Context, id int64, attempts int, _ string, _ string) error {
	r.failed = append(r.failed, id)
	if r.attempts == nil {
		r.attempts = make(map[int64]int)
	}
	r.attempts[id] = attempts
	return nil
}

func (r *stubOutboxRepo) MarkDead(_ context.Context, id int64, attempts int, _ string) error {
	r.dead = append(r.dead, id)
	if r.attempts == nil {
		r.attempts = make(map[int64]int)
	}
	r.attempts[id] = attempts
	return nil
}

type stubPublisher struct {
	published []domain.EventEnvelope
	err       error
}

func (p *stubPublisher) Publish(_ context.Context, _ string, event domain.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

func pendingEvent(id int64, attempts int) domain.OutboxEvent {
	payload, _ := json.Marshal(domain.EventEnvelope{
		EventID:   "evt-1",
		EventType: domain.EventSchemaRegistered,
		TenantID:  "t1",
		SchemaID:  "aws-control-tower-secret",
	})
	return domain.OutboxEvent{
		ID:          id,
		EventID:     "evt-1",
		Topic:       domain.TopicSchemaEvents,
		PayloadJSON: payload,
		Status:      "pending",
		Attempts:    attempts,
	}
}

func TestDispatchBatchDeliversAndMarks(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxEvent{pendingEvent(1, 0), pendingEvent(2, 0)}}
	publisher := &stubPublisher{}
	d := NewOutboxDispatcher(repo, publisher, time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(publisher.published) != 2 || len(repo.dispatched) != 2 {
		t.Fatalf("published=%d dispatched=%d", len(publisher.published), len(repo.dispatched))
	}
	if m := d.Metrics(); m.SuccessTotal != 2 || m.FailureTotal != 0 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestDispatchBatchRetriesOnPublishError(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxEvent{pendingEvent(1, 0)}}
	publisher := &stubPublisher{err: errors.New("endpoint down")}
	d := NewOutboxDispatcher(repo, publisher, time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(repo.failed) != 1 || repo.attempts[1] != 1 {
		t.Fatalf("expected one failed mark with attempt 1, got failed=%v attempts=%v", repo.failed, repo.attempts)
	}
	if m := d.Metrics(); m.FailureTotal != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestDispatchBatchDeadLettersAfterMaxRetry(t *testing.T) {
	repo := &stubOutboxRepo{pending: []domain.OutboxEvent{pendingEvent(1, 4)}}
	publisher := &stubPublisher{err: errors.New("endpoint down")}
	d := NewOutboxDispatcher(repo, publisher, time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(repo.dead) != 1 || repo.attempts[1] != 5 {
		t.Fatalf("expected dead-letter at attempt 5, got dead=%v attempts=%v", repo.dead, repo.attempts)
	}
	if m := d.Metrics(); m.DeadTotal != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestDispatchBatchDeadLettersUndecodablePayload(t *testing.T) {
	broken := pendingEvent(1, 4)
	broken.PayloadJSON = json.RawMessage(`{broken`)
	repo := &stubOutboxRepo{pending: []domain.OutboxEvent{broken}}
	d := NewOutboxDispatcher(repo, &stubPublisher{}, time.Second, 10)

	if err := d.dispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(repo.dead) != 1 {
		t.Fatalf("undecodable payload should dead-letter at the retry cap, got %v", repo)
	}
}

func TestBackoffDurationGrowsAndCaps(t *testing.T) {
	if got := backoffDuration(1); got != time.Second {
		t.Fatalf("attempt 1: %v", got)
	}
	if got := backoffDuration(3); got != 9*time.Second {
		t.Fatalf("attempt 3: %v", got)
	}
	if got := backoffDuration(100); got != 5*time.Minute {
		t.Fatalf("attempt 100: %v", got)
	}
}
