package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 3, EpochSeconds: 60}
	prev := QuotaUsage{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Requests != 3 {
		t.Fatalf("unexpected request count: %d", next.Requests)
	}

	denied, err := CheckQuota(q, 1, next, 1, 0)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.Requests != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaAmount(t *testing.T) {
	q := Quota{MaxAmountPerEpoch: 1_000, EpochSeconds: 60}
	prev := QuotaUsage{EpochID: 5}

	next, err := CheckQuota(q, 5, prev, 0, 1_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Amount != 1_000 {
		t.Fatalf("unexpected amount used: %d", next.Amount)
	}

	if _, err := CheckQuota(q, 5, next, 0, 1); !errors.Is(err, ErrQuotaAmountExceeded) {
		t.Fatalf("expected ErrQuotaAmountExceeded, got %v", err)
	}

	rollover, err := CheckQuota(q, 6, next, 0, 500)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.Amount != 500 {
		t.Fatalf("unexpected amount after rollover: %d", rollover.Amount)
	}
}

func TestCheckQuotaOverflow(t *testing.T) {
	prev := QuotaUsage{EpochID: 1, Amount: math.MaxUint64}
	if _, err := CheckQuota(Quota{EpochSeconds: 1}, 1, prev, 0, 1); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestQuotaEpoch(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 1, EpochSeconds: 60}
	if !q.Enabled() {
		t.Fatalf("expected quota enabled")
	}
	if got := q.Epoch(125); got != 2 {
		t.Fatalf("unexpected epoch: %d", got)
	}
	if (Quota{}).Enabled() {
		t.Fatalf("zero quota must be disabled")
	}
}

type pauses map[string]bool

func (p pauses) IsPaused(action string) bool { return p[action] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "mint"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	view := pauses{"mint": true}
	if err := Guard(view, "mint"); !errors.Is(err, ErrActionPaused) {
		t.Fatalf("expected ErrActionPaused, got %v", err)
	}
	if err := Guard(view, "redeem"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
