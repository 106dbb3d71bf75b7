package ledger

import (
	"testing"

	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
)

var (
	tea   = Product{ID: 10, Code: "4901234567894", Name: "お茶", Price: 150}
	gum   = Product{ID: 11, Code: "4512345678903", Name: "ガム", Price: 100}
	ghost = Product{ID: 0, Code: "UNKNOWN-1", Name: "未登録コード（マスタ未登録）", Price: 0}
)

func TestAddOrIncrementMergesByID(t *testing.T) {
	l := New(DefaultPolicy())

	line, err := l.AddOrIncrement(tea)
	if err != nil {
		t.Fatalf("AddOrIncrement: %v", err)
	}
	if line.Quantity != 1 {
		t.Fatalf("fresh row quantity = %d", line.Quantity)
	}

	line, err = l.AddOrIncrement(tea)
	if err != nil {
		t.Fatalf("AddOrIncrement: %v", err)
	}
	if line.Quantity != 2 {
		t.Fatalf("rescanned row quantity = %d", line.Quantity)
	}
	if l.Len() != 1 {
		t.Fatalf("expected one row, got %d", l.Len())
	}
}

func TestAddOrIncrementMergesPlaceholdersByCode(t *testing.T) {
	l := New(DefaultPolicy())
	l.AddOrIncrement(ghost)
	l.AddOrIncrement(ghost)
	other := ghost
	other.Code = "UNKNOWN-2"
	l.AddOrIncrement(other)

	lines := l.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected two placeholder rows, got %d", len(lines))
	}
	if lines[0].Quantity != 2 || lines[1].Quantity != 1 {
		t.Fatalf("unexpected quantities %d %d", lines[0].Quantity, lines[1].Quantity)
	}
}

func TestAddOrIncrementMergesByCodeWhenOneSideLacksID(t *testing.T) {
	l := New(DefaultPolicy())

	// A code scanned before the catalog knew it lands as a placeholder row.
	l.AddOrIncrement(Product{ID: 0, Code: tea.Code, Name: "未登録コード（マスタ未登録）"})
	line, err := l.AddOrIncrement(tea)
	if err != nil {
		t.Fatalf("AddOrIncrement: %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("registered rescan of a placeholder code split into %d rows", l.Len())
	}
	if line.Quantity != 2 {
		t.Fatalf("merged row quantity = %d, want 2", line.Quantity)
	}

	// Same the other way round: a placeholder scan over a registered row.
	l2 := New(DefaultPolicy())
	l2.AddOrIncrement(tea)
	line, err = l2.AddOrIncrement(Product{ID: 0, Code: tea.Code})
	if err != nil {
		t.Fatalf("AddOrIncrement: %v", err)
	}
	if l2.Len() != 1 || line.Quantity != 2 {
		t.Fatalf("placeholder rescan over a registered row: rows=%d quantity=%d", l2.Len(), line.Quantity)
	}
}

func TestAddOrIncrementRequiresACode(t *testing.T) {
	l := New(DefaultPolicy())
	_, err := l.AddOrIncrement(Product{ID: 5})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetQuantityClampsToOne(t *testing.T) {
	l := New(DefaultPolicy())
	l.AddOrIncrement(tea)

	line, err := l.SetQuantity(tea.Code, 0)
	if err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if line.Quantity != 1 {
		t.Fatalf("quantity clamped to %d, want 1", line.Quantity)
	}

	line, _ = l.SetQuantity(tea.Code, 7)
	if line.Quantity != 7 {
		t.Fatalf("quantity = %d, want 7", line.Quantity)
	}
}

func TestDecrementFloorsAtOne(t *testing.T) {
	l := New(DefaultPolicy())
	l.AddOrIncrement(tea)
	l.Increment(tea.Code)

	line, err := l.Decrement(tea.Code)
	if err != nil {
		t.Fatalf("Decrement: %v", err)
	}
	if line.Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", line.Quantity)
	}

	line, _ = l.Decrement(tea.Code)
	if line.Quantity != 1 {
		t.Fatalf("decrement went below one: %d", line.Quantity)
	}
	if l.Len() != 1 {
		t.Fatal("decrement must never remove the row")
	}
}

func TestRemoveAndClear(t *testing.T) {
	l := New(DefaultPolicy())
	l.AddOrIncrement(tea)
	l.AddOrIncrement(gum)

	if err := l.Remove(tea.Code); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("rows after remove = %d", l.Len())
	}
	if err := l.Remove(tea.Code); err == nil {
		t.Fatal("expected not-found on second remove")
	}

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("rows after clear = %d", l.Len())
	}
	if got := l.Totals(); got.Total != 0 {
		t.Fatalf("empty cart total = %d", got.Total)
	}
}

func TestMutationsOnMissingRows(t *testing.T) {
	l := New(DefaultPolicy())
	if _, err := l.SetQuantity("nope", 2); pkgerrors.As(err) == nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if _, err := l.Increment("nope"); pkgerrors.As(err) == nil {
		t.Fatalf("Increment: %v", err)
	}
	if _, err := l.Decrement("nope"); pkgerrors.As(err) == nil {
		t.Fatalf("Decrement: %v", err)
	}
}

func TestTotalsWithDefaultPolicy(t *testing.T) {
	l := New(DefaultPolicy())
	l.AddOrIncrement(tea)
	l.AddOrIncrement(tea)
	l.AddOrIncrement(tea)

	got := l.Totals()
	want := Totals{Subtotal: 450, Tax: 45, Total: 495}
	if got != want {
		t.Fatalf("Totals() = %+v, want %+v", got, want)
	}
}

func TestTotalsRecomputeAfterEveryChange(t *testing.T) {
	l := New(DefaultPolicy())
	l.AddOrIncrement(tea)
	l.AddOrIncrement(gum)
	l.SetQuantity(gum.Code, 3)

	got := l.Totals()
	if got.Subtotal != 450 {
		t.Fatalf("subtotal = %d", got.Subtotal)
	}

	l.Remove(gum.Code)
	got = l.Totals()
	if got.Subtotal != 150 || got.Tax != 15 || got.Total != 165 {
		t.Fatalf("totals after remove = %+v", got)
	}
}

func TestPolicyRounding(t *testing.T) {
	tests := []struct {
		name     string
		mode     RoundingMode
		subtotal int64
		want     int64
	}{
		{name: "floor drops the fraction", mode: RoundFloor, subtotal: 105, want: 10},
		{name: "half rounds up at .5", mode: RoundHalf, subtotal: 105, want: 11},
		{name: "half rounds down below .5", mode: RoundHalf, subtotal: 104, want: 10},
		{name: "ceil always rounds up", mode: RoundCeil, subtotal: 101, want: 11},
		{name: "exact amounts untouched", mode: RoundCeil, subtotal: 100, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{Rate: DefaultPolicy().Rate, Rounding: tt.mode}
			if got := p.Tax(tt.subtotal); got != tt.want {
				t.Fatalf("Tax(%d) = %d, want %d", tt.subtotal, got, tt.want)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("0.08", "round")
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if p.Rounding != RoundHalf {
		t.Fatalf("rounding = %q", p.Rounding)
	}
	if got := p.Tax(1000); got != 80 {
		t.Fatalf("Tax(1000) at 8%% = %d", got)
	}

	if _, err := ParsePolicy("ten percent", "floor"); err == nil {
		t.Fatal("expected error for a non-numeric rate")
	}
	if _, err := ParsePolicy("-0.1", "floor"); err == nil {
		t.Fatal("expected error for a negative rate")
	}
	if _, err := ParsePolicy("0.1", "banker"); err == nil {
		t.Fatal("expected error for an unknown rounding mode")
	}

	p, err = ParsePolicy("0.10", "")
	if err != nil {
		t.Fatalf("ParsePolicy with empty mode: %v", err)
	}
	if p.Rounding != RoundFloor {
		t.Fatalf("empty mode should default to floor, got %q", p.Rounding)
	}
}
