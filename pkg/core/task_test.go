package core

import (
	"context"
	"testing"
)

func TestTaskLifecycle(t *testing.T) {
	task := NewTask("summarize the report")
	if task.Status != TaskStatusPending {
		t.Fatalf("expected pending status")
	}
	if task.ID == "" {
		t.Fatalf("expected generated id")
	}
	if err := task.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if task.Status != TaskStatusRunning {
		t.Fatalf("expected running status")
	}
	if err := task.Complete("done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.Status != TaskStatusCompleted {
		t.Fatalf("expected completed status")
	}
	if task.Result != "done" {
		t.Fatalf("expected result to be set")
	}
}

func TestTaskTerminalStateRejectsTransitions(t *testing.T) {
	task := NewTask("goal")
	_ = task.Start()
	if err := task.Fail("boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := task.Complete("late"); err == nil {
		t.Fatalf("expected transition out of failed to be rejected")
	}
	if task.Status != TaskStatusFailed {
		t.Fatalf("status changed after rejected transition: %s", task.Status)
	}
	if err := task.Cancel(); err == nil {
		t.Fatalf("expected cancel of failed task to be rejected")
	}
}

func TestTaskStartRequiresPending(t *testing.T) {
	task := NewTask("goal")
	_ = task.Start()
	if err := task.Start(); err == nil {
		t.Fatalf("expected second start to be rejected")
	}
}

func TestTaskContextAndConstraints(t *testing.T) {
	task := NewTask("goal").
		WithContext("tone", "formal").
		WithConstraint(Constraint{Kind: ConstraintMaxIterations, Value: 3}).
		WithConstraint(Constraint{Kind: ConstraintCustom, Name: "style", Value: "terse"})
	if task.Context["tone"] != "formal" {
		t.Fatalf("expected context value")
	}
	if len(task.Constraints) != 2 {
		t.Fatalf("expected two constraints")
	}
	if task.Constraints[0].Kind != ConstraintMaxIterations {
		t.Fatalf("unexpected constraint kind: %s", task.Constraints[0].Kind)
	}
}

func TestRunIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := RunID(ctx); ok {
		t.Fatalf("expected no run id on fresh context")
	}
	ctx, id := EnsureRunID(ctx)
	if id == "" {
		t.Fatalf("expected generated run id")
	}
	got, ok := RunID(ctx)
	if !ok || got != id {
		t.Fatalf("expected run id %q, got %q", id, got)
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatalf("expected EnsureRunID to be idempotent")
	}
}
