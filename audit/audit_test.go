package audit

import (
	"context"
	"testing"
	"time"

	"github.com/fleetline/agvctl/emit"
)

func TestMemStoreAppendAndQueryEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.AppendEvent(ctx, emit.Event{OrderID: "order-1", Step: 1, Msg: "task_started"}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := s.AppendEvent(ctx, emit.Event{OrderID: "order-1", Step: 2, Msg: "task_finished"}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := s.AppendEvent(ctx, emit.Event{OrderID: "order-2", Step: 1, Msg: "task_started"}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	events, err := s.EventsForOrder(ctx, "order-1", 0)
	if err != nil {
		t.Fatalf("EventsForOrder: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for order-1, got %d", len(events))
	}
	if events[0].Msg != "task_started" || events[1].Msg != "task_finished" {
		t.Fatalf("expected ordered events, got %+v", events)
	}
}

func TestMemStoreAppendAndQueryErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	rec := ErrorRecord{OrderID: "order-1", TaskID: "action:a1", Message: "handler exception", Timestamp: time.Now()}
	if err := s.AppendError(ctx, rec); err != nil {
		t.Fatalf("AppendError: %v", err)
	}

	records, err := s.ErrorsForOrder(ctx, "order-1", 0)
	if err != nil {
		t.Fatalf("ErrorsForOrder: %v", err)
	}
	if len(records) != 1 || records[0].Message != "handler exception" {
		t.Fatalf("expected one recorded error, got %+v", records)
	}
}

func TestMemStoreEventsForUnknownOrderIsEmptyNotError(t *testing.T) {
	s := NewMemStore()
	events, err := s.EventsForOrder(context.Background(), "missing", 0)
	if err != nil {
		t.Fatalf("EventsForOrder: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestSQLiteStoreRoundTripsEventsAndErrors(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	ev := emit.Event{OrderID: "order-1", Step: 3, TaskID: "action:a1", Msg: "task_finished", Meta: map[string]interface{}{"duration_ms": "120"}}
	if err := s.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	rec := ErrorRecord{OrderID: "order-1", TaskID: "action:a1", Message: "boom", Timestamp: time.Now().UTC()}
	if err := s.AppendError(ctx, rec); err != nil {
		t.Fatalf("AppendError: %v", err)
	}

	events, err := s.EventsForOrder(ctx, "order-1", 0)
	if err != nil {
		t.Fatalf("EventsForOrder: %v", err)
	}
	if len(events) != 1 || events[0].Msg != "task_finished" || events[0].Meta["duration_ms"] != "120" {
		t.Fatalf("unexpected events: %+v", events)
	}

	records, err := s.ErrorsForOrder(ctx, "order-1", 0)
	if err != nil {
		t.Fatalf("ErrorsForOrder: %v", err)
	}
	if len(records) != 1 || records[0].Message != "boom" {
		t.Fatalf("unexpected records: %+v", records)
	}
}
