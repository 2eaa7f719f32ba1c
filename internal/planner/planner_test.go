package planner

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"cutplan/internal/models"
)

func unit(id string, avail float64) models.InventoryUnit {
	return models.InventoryUnit{ID: id, AvailableQuantity: decimal.NewFromFloat(avail)}
}

func dec(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func TestToggleManualInsertsUnquantified(t *testing.T) {
	cat := Catalog{unit("u1", 10)}
	sel := Toggle(SelectionMap{}, "u1", cat, nil, PolicyManual)

	e, ok := sel["u1"]
	if !ok {
		t.Fatal("unit u1 not selected")
	}
	if e.Set {
		t.Errorf("manual toggle should leave quantity unset, got %s", e.Quantity)
	}
}

func TestToggleOffRemovesEntry(t *testing.T) {
	cat := Catalog{unit("u1", 10)}
	sel := Toggle(SelectionMap{}, "u1", cat, nil, PolicyManual)
	sel = SetQuantity(sel, "u1", "5", cat, nil)
	sel = Toggle(sel, "u1", cat, nil, PolicyManual)

	if _, ok := sel["u1"]; ok {
		t.Error("toggling off should remove the entry entirely, not zero it")
	}
}

func TestToggleRoundTrip(t *testing.T) {
	cat := Catalog{unit("u1", 10), unit("u2", 20)}
	orig := Toggle(SelectionMap{}, "u2", cat, nil, PolicyManual)
	orig = SetQuantity(orig, "u2", "7", cat, nil)

	after := Toggle(orig, "u1", cat, nil, PolicyManual)
	after = Toggle(after, "u1", cat, nil, PolicyManual)

	if len(after) != len(orig) {
		t.Fatalf("expected %d entries after round trip, got %d", len(orig), len(after))
	}
	if !after["u2"].Quantity.Equal(orig["u2"].Quantity) {
		t.Errorf("unrelated entry changed: %s != %s", after["u2"].Quantity, orig["u2"].Quantity)
	}
}

func TestToggleZeroStockIsNoOp(t *testing.T) {
	cat := Catalog{unit("u1", 0)}
	sel := Toggle(SelectionMap{}, "u1", cat, nil, PolicyAutoFill)
	if len(sel) != 0 {
		t.Error("a unit with no available stock must not be selectable")
	}
}

// Scenario A: target=50, units 30 and 40; auto-fill applies the remaining
// budget to the second unit.
func TestAutoFillAppliesRemainingBudget(t *testing.T) {
	cat := Catalog{unit("1", 30), unit("2", 40)}
	target := dec(50)

	sel := Toggle(SelectionMap{}, "1", cat, target, PolicyAutoFill)
	sel = Toggle(sel, "2", cat, target, PolicyAutoFill)

	if got := sel["1"].Quantity; !got.Equal(decimal.NewFromInt(30)) {
		t.Errorf("unit 1: want 30, got %s", got)
	}
	if got := sel["2"].Quantity; !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("unit 2: want 20, got %s", got)
	}
	if rem := RemainingBudget(sel, target); rem == nil || !rem.IsZero() {
		t.Errorf("budget should be exhausted, got %v", rem)
	}
}

// Scenario B: manual toggle leaves the quantity unset; entering "15"
// against 10 of stock clamps to 10.00.
func TestSetQuantityClampsToStock(t *testing.T) {
	cat := Catalog{unit("1", 10)}
	sel := Toggle(SelectionMap{}, "1", cat, nil, PolicyManual)
	if sel["1"].Set {
		t.Fatal("manual toggle should not quantify the entry")
	}
	sel = SetQuantity(sel, "1", "15", cat, nil)
	if got := sel["1"].Quantity; !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("want clamp to 10, got %s", got)
	}
}

func TestSetQuantityLocaleTolerantParse(t *testing.T) {
	cat := Catalog{unit("1", 100)}
	sel := SetQuantity(SelectionMap{}, "1", "12,5", cat, nil)
	if got := sel["1"].Quantity; !got.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("comma input: want 12.5, got %s", got)
	}

	sel = SetQuantity(sel, "1", "not a number", cat, nil)
	e := sel["1"]
	if e.Set {
		t.Errorf("garbage input should store the entry unquantified, got %s", e.Quantity)
	}
}

func TestSetQuantityNegativeClampsToZero(t *testing.T) {
	cat := Catalog{unit("1", 10)}
	sel := SetQuantity(SelectionMap{}, "1", "-3", cat, nil)
	if got := sel["1"].Quantity; !got.IsZero() {
		t.Errorf("want 0, got %s", got)
	}
}

func TestSetQuantityClampsToRemainingBudget(t *testing.T) {
	cat := Catalog{unit("1", 30), unit("2", 40)}
	target := dec(50)
	sel := SetQuantity(SelectionMap{}, "1", "30", cat, target)
	sel = SetQuantity(sel, "2", "40", cat, target)

	if got := sel["2"].Quantity; !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("want clamp to remaining 20, got %s", got)
	}

	// Re-entering the same unit excludes its own previous entry from the
	// budget, so the clamp does not compound.
	sel = SetQuantity(sel, "2", "40", cat, target)
	if got := sel["2"].Quantity; !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("re-entry should still clamp to 20, got %s", got)
	}
}

func TestSetQuantityIdempotent(t *testing.T) {
	cat := Catalog{unit("1", 33.333)}
	once := SetQuantity(SelectionMap{}, "1", "12.345", cat, dec(100))
	twice := SetQuantity(once, "1", "12.345", cat, dec(100))
	if !once["1"].Quantity.Equal(twice["1"].Quantity) {
		t.Errorf("setQuantity not idempotent: %s != %s", once["1"].Quantity, twice["1"].Quantity)
	}
}

func TestRemainingBudgetNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		cat := Catalog{}
		sel := SelectionMap{}
		for u := 0; u < 1+rng.Intn(8); u++ {
			id := string(rune('a' + u))
			cat = append(cat, unit(id, rng.Float64()*100))
			sel[id] = Selection{Quantity: decimal.NewFromFloat(rng.Float64() * 100), Set: true}
		}
		target := dec(rng.Float64() * 50)
		if rem := RemainingBudget(sel, target); rem != nil && rem.IsNegative() {
			t.Fatalf("negative remaining budget %s for target %s", rem, target)
		}
	}
}

func TestCommittedQuantityNeverExceedsStock(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		avail := rng.Float64() * 50
		cat := Catalog{unit("x", avail)}
		raw := decimal.NewFromFloat(rng.Float64() * 100).String()
		sel := SetQuantity(SelectionMap{}, "x", raw, cat, nil)
		got := sel["x"].Quantity
		if got.Sub(decimal.NewFromFloat(avail)).GreaterThan(Epsilon) {
			t.Fatalf("committed %s exceeds stock %v (input %s)", got, avail, raw)
		}
	}
}

func TestRemainingBudgetUnboundedWhenNoTarget(t *testing.T) {
	if RemainingBudget(SelectionMap{}, nil) != nil {
		t.Error("nil target should be unbounded")
	}
	zero := decimal.Zero
	if RemainingBudget(SelectionMap{}, &zero) != nil {
		t.Error("zero target means unbounded distribution, not a zero budget")
	}
}

// Exact-match gate: 99.99 against 100 fails, 100.0049 passes (epsilon 0.005).
func TestValidateExactMatchEpsilon(t *testing.T) {
	cat := Catalog{unit("1", 200)}
	target := dec(100)

	cases := []struct {
		input string
		ok    bool
	}{
		{"99.99", false},
		{"100.00", true},
		{"100.0049", true},
	}
	for _, tc := range cases {
		sel := SelectionMap{"1": {Quantity: decimal.RequireFromString(tc.input), Set: true}}
		err := Validate(sel, cat, ValidateOptions{Target: target, ExactMatch: true})
		if tc.ok && err != nil {
			t.Errorf("sum %s: expected exact match to pass, got %v", tc.input, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("sum %s: expected exact match to fail", tc.input)
		}
	}
}

// Scenario C: deferring allocation without a positive target fails
// regardless of item contents.
func TestValidateDeferredRequiresTarget(t *testing.T) {
	cat := Catalog{unit("1", 10)}
	zero := decimal.Zero

	for _, sel := range []SelectionMap{
		{},
		{"1": {Quantity: decimal.NewFromInt(5), Set: true}},
	} {
		err := Validate(sel, cat, ValidateOptions{Target: &zero, DeferItems: true})
		if err != ErrTargetRequired {
			t.Errorf("want ErrTargetRequired, got %v", err)
		}
	}
}

func TestValidateDeferredAllowsEmptySelection(t *testing.T) {
	err := Validate(SelectionMap{}, Catalog{}, ValidateOptions{Target: dec(25), DeferItems: true})
	if err != nil {
		t.Errorf("deferred allocation with a positive target should accept an empty selection: %v", err)
	}
}

func TestValidateImmediateRequiresPositiveItem(t *testing.T) {
	cat := Catalog{unit("1", 10)}
	sel := SelectionMap{"1": {}}
	if err := Validate(sel, cat, ValidateOptions{}); err == nil {
		t.Error("an unquantified selection must not validate for immediate allocation")
	}
}

func TestValidateRechecksStockDrift(t *testing.T) {
	// The selection was built when 10 were available; the fresh snapshot
	// only has 4 left.
	sel := SelectionMap{"1": {Quantity: decimal.NewFromInt(8), Set: true}}
	fresh := Catalog{unit("1", 4)}
	if err := Validate(sel, fresh, ValidateOptions{}); err == nil {
		t.Error("validation must catch quantities above the latest stock snapshot")
	}
}

func TestValidateSumOverTarget(t *testing.T) {
	cat := Catalog{unit("1", 100)}
	sel := SelectionMap{"1": {Quantity: decimal.NewFromInt(60), Set: true}}
	if err := Validate(sel, cat, ValidateOptions{Target: dec(50)}); err == nil {
		t.Error("sum above target must fail")
	}
	if err := Validate(sel, cat, ValidateOptions{Target: dec(60)}); err != nil {
		t.Errorf("sum equal to target must pass, got %v", err)
	}
}

func TestAutoFillAllStopsAtBudget(t *testing.T) {
	cat := Catalog{unit("a", 30), unit("b", 40), unit("c", 25)}
	sel := AutoFillAll(SelectionMap{}, cat, decimal.NewFromInt(50))

	if !Sum(sel).Equal(decimal.NewFromInt(50)) {
		t.Errorf("want total 50, got %s", Sum(sel))
	}
	if _, ok := sel["c"]; ok {
		t.Error("third unit should never be touched once the budget is spent")
	}
	if err := Validate(sel, cat, ValidateOptions{Target: dec(50), DeferItems: true, ExactMatch: true}); err != nil {
		t.Errorf("auto-filled selection should pass the exact-match gate: %v", err)
	}
}

func TestAutoFillAllShortStock(t *testing.T) {
	cat := Catalog{unit("a", 10), unit("b", 15)}
	sel := AutoFillAll(SelectionMap{}, cat, decimal.NewFromInt(50))
	if !Sum(sel).Equal(decimal.NewFromInt(25)) {
		t.Errorf("want 25 allocated, got %s", Sum(sel))
	}
	err := Validate(sel, cat, ValidateOptions{Target: dec(50), DeferItems: true, ExactMatch: true})
	if err == nil {
		t.Error("short stock must fail the exact-match gate")
	}
}

func TestCommittedItemsDropsZeroRows(t *testing.T) {
	cat := Catalog{unit("a", 10), unit("b", 10), unit("c", 10)}
	sel := SelectionMap{
		"a": {Quantity: decimal.NewFromInt(3), Set: true},
		"b": {},
		"c": {Quantity: decimal.Zero, Set: true},
	}
	items := CommittedItems(sel, cat)
	if len(items) != 1 || items[0].UnitID != "a" {
		t.Fatalf("want only unit a committed, got %+v", items)
	}
}
