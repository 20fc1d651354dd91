package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaAmountExceeded   = errors.New("quota amount cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaUsage captures the counters consumed by an address in one epoch.
type QuotaUsage struct {
	Requests uint32
	Amount   uint64
	EpochID  uint64
}

// Quota bounds how often and how much an address may act per epoch. Zero
// limits are disabled.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxAmountPerEpoch   uint64
	EpochSeconds        uint32
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.EpochSeconds > 0 && (q.MaxRequestsPerEpoch > 0 || q.MaxAmountPerEpoch > 0)
}

// Epoch maps a unix timestamp onto the quota's epoch counter.
func (q Quota) Epoch(unix int64) uint64 {
	if q.EpochSeconds == 0 || unix <= 0 {
		return 0
	}
	return uint64(unix) / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether the additional request and amount fit within the
// quota. The returned usage reflects the updated counters on success and the
// untouched prior counters on denial.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaUsage, addReq uint32, addAmount uint64) (QuotaUsage, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaUsage{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.Requests > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.Requests += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.Requests > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addAmount > 0 {
		if next.Amount > math.MaxUint64-addAmount {
			return prev, ErrQuotaCounterOverflow
		}
		next.Amount += addAmount
	}
	if q.MaxAmountPerEpoch > 0 && next.Amount > q.MaxAmountPerEpoch {
		return prev, ErrQuotaAmountExceeded
	}

	return next, nil
}
