package proofcache

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/weisyn/rollup-prover/internal/core/prover/proverr"
)

// Status 记录状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal 是否为终态
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ProofRecord 一个请求键对应的证明记录
//
// pending 由原子预留写入，之后只会转为 succeeded 或 failed 一次，
// 终态记录在过期前不可修改。
type ProofRecord struct {
	Status        Status          `json:"status"`
	Proof         string          `json:"proof,omitempty"`
	PublicInputs  json.RawMessage `json:"publicInputs,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	ReservationID string          `json:"reservationId"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

// NewPending 创建带新预留 ID 的 pending 记录
func NewPending(now time.Time, ttl time.Duration) *ProofRecord {
	return &ProofRecord{
		Status:        StatusPending,
		ReservationID: uuid.NewString(),
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

// Succeed 派生成功终态记录
func (r *ProofRecord) Succeed(now time.Time, ttl time.Duration, proof string, publicInputs json.RawMessage) *ProofRecord {
	out := r.complete(now, ttl)
	out.Status = StatusSucceeded
	out.Proof = proof
	out.PublicInputs = publicInputs
	return out
}

// Fail 派生失败终态记录
func (r *ProofRecord) Fail(now time.Time, ttl time.Duration, message string) *ProofRecord {
	out := r.complete(now, ttl)
	out.Status = StatusFailed
	out.ErrorMessage = message
	return out
}

func (r *ProofRecord) complete(now time.Time, ttl time.Duration) *ProofRecord {
	done := now
	return &ProofRecord{
		ReservationID: r.ReservationID,
		CreatedAt:     r.CreatedAt,
		CompletedAt:   &done,
		ExpiresAt:     now.Add(ttl),
	}
}

// Expired 记录在 now 时是否已过期
func (r *ProofRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// ttlAt 记录在 now 时的剩余生存时间
func (r *ProofRecord) ttlAt(now time.Time) time.Duration {
	if r.ExpiresAt.IsZero() {
		return 0
	}
	return r.ExpiresAt.Sub(now)
}

// holdsReservation 当前值是否仍为该预留的 pending 记录
func (r *ProofRecord) holdsReservation(reservationID string) bool {
	return r.Status == StatusPending && r.ReservationID == reservationID
}

func encodeRecord(r *ProofRecord) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, proverr.Wrap(proverr.ErrCorruptRecord, "encode: %v", err)
	}
	return data, nil
}

func decodeRecord(key string, data []byte) (*ProofRecord, error) {
	var r ProofRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, proverr.Wrap(proverr.ErrCorruptRecord, "key=%s: %v", key, err)
	}
	switch r.Status {
	case StatusPending, StatusSucceeded, StatusFailed:
	default:
		return nil, proverr.Wrap(proverr.ErrCorruptRecord, "key=%s: unknown status %q", key, r.Status)
	}
	return &r, nil
}
