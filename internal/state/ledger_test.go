// internal/state/ledger_test.go
package state

import (
	"context"
	"errors"
	"testing"

	"github.com/user/commentflow/internal/types"
)

func TestLedger_AdmitOnce(t *testing.T) {
	ledger := NewLedger(t.TempDir())
	ctx := context.Background()

	admission, err := ledger.Admit(ctx, "evt-1", "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if !admission.Admitted {
		t.Error("expected first admission to be admitted")
	}
}

func TestLedger_DuplicateReturnsExisting(t *testing.T) {
	ledger := NewLedger(t.TempDir())
	ctx := context.Background()

	if _, err := ledger.Admit(ctx, "evt-1", "c-1"); err != nil {
		t.Fatal(err)
	}

	admission, err := ledger.Admit(ctx, "evt-1", "c-other")
	if err != nil {
		t.Fatal(err)
	}
	if admission.Admitted {
		t.Error("expected duplicate to be rejected")
	}
	if admission.Existing == nil {
		t.Fatal("expected existing record")
	}
	if admission.Existing.CommentID != "c-1" {
		t.Errorf("expected original comment ID c-1, got %s", admission.Existing.CommentID)
	}
}

func TestLedger_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if _, err := NewLedger(dir).Admit(ctx, "evt-1", "c-1"); err != nil {
		t.Fatal(err)
	}

	// A fresh ledger over the same directory still rejects the event.
	admission, err := NewLedger(dir).Admit(ctx, "evt-1", "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if admission.Admitted {
		t.Error("expected duplicate rejection after restart")
	}
}

func TestLedger_EmptyEventID(t *testing.T) {
	ledger := NewLedger(t.TempDir())

	_, err := ledger.Admit(context.Background(), "", "c-1")
	if err == nil {
		t.Fatal("expected error for empty event ID")
	}
	var validation *types.ValidationError
	if !errors.As(err, &validation) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestLedger_DistinctEvents(t *testing.T) {
	ledger := NewLedger(t.TempDir())
	ctx := context.Background()

	for _, id := range []types.EventID{"evt-1", "evt-2", "evt-3"} {
		admission, err := ledger.Admit(ctx, id, "c-1")
		if err != nil {
			t.Fatal(err)
		}
		if !admission.Admitted {
			t.Errorf("expected %s to be admitted", id)
		}
	}
}
