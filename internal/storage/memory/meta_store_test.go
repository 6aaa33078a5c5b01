package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
)

func TestMetaStore_Evaluations(t *testing.T) {
	store := NewMetaStore()
	ctx := context.Background()

	eval := &domain.ImpactEvaluation{
		EvalID:         "e1",
		AdjustmentID:   "adj1",
		ImpactScore:    0.03,
		Classification: domain.ImpactImproved,
		EvaluatedAt:    1000,
	}
	if err := store.InsertEvaluation(ctx, eval); err != nil {
		t.Fatalf("InsertEvaluation failed: %v", err)
	}

	has, err := store.HasEvaluation(ctx, "adj1")
	if err != nil {
		t.Fatalf("HasEvaluation failed: %v", err)
	}
	if !has {
		t.Error("Expected adj1 evaluated")
	}
	has, _ = store.HasEvaluation(ctx, "adj2")
	if has {
		t.Error("Expected adj2 not evaluated")
	}

	if err := store.InsertEvaluation(ctx, eval); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestMetaStore_GetEvaluationsOrder(t *testing.T) {
	store := NewMetaStore()
	ctx := context.Background()

	for i, at := range []int64{2000, 1000, 3000} {
		store.InsertEvaluation(ctx, &domain.ImpactEvaluation{
			EvalID:         string(rune('a' + i)),
			AdjustmentID:   string(rune('x' + i)),
			Classification: domain.ImpactNeutral,
			EvaluatedAt:    at,
		})
	}

	evals, err := store.GetEvaluations(ctx, 2)
	if err != nil {
		t.Fatalf("GetEvaluations failed: %v", err)
	}
	if len(evals) != 2 {
		t.Fatalf("Expected 2 evaluations, got %d", len(evals))
	}
	if evals[0].EvaluatedAt != 3000 || evals[1].EvaluatedAt != 2000 {
		t.Errorf("Wrong order: %d, %d", evals[0].EvaluatedAt, evals[1].EvaluatedAt)
	}
}

func TestMetaStore_Events(t *testing.T) {
	store := NewMetaStore()
	ctx := context.Background()

	_, err := store.GetLatestEvent(ctx, domain.MetaEventLearningRate)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on empty store, got %v", err)
	}

	for i, ev := range []*domain.MetaEvent{
		{EventID: "e1", Type: domain.MetaEventLearningRate, Value: 1.0, CreatedAt: 1000},
		{EventID: "e2", Type: domain.MetaEventLearningRate, Value: 0.5, CreatedAt: 2000},
		{EventID: "e3", Type: domain.MetaEventReversion, Value: 3, CreatedAt: 3000},
	} {
		if err := store.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("InsertEvent %d failed: %v", i, err)
		}
	}

	latest, err := store.GetLatestEvent(ctx, domain.MetaEventLearningRate)
	if err != nil {
		t.Fatalf("GetLatestEvent failed: %v", err)
	}
	if latest.EventID != "e2" || latest.Value != 0.5 {
		t.Errorf("Expected latest learning_rate event e2=0.5, got %s=%f", latest.EventID, latest.Value)
	}
}
