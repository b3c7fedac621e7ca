package lockmgr

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Record is the persisted state of a lock.
// A nil Token means no owner, a nil Expire means the record never expires.
type Record struct {
	Token  *string  `json:"token"`
	Expire *float64 `json:"expire,omitempty"`
}

// EncodeRecord serializes r as a JSON object.
func EncodeRecord(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord parses a JSON object into a Record.
// Anything that is not a JSON object is rejected.
func DecodeRecord(data []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Record{}, fmt.Errorf("malformed lock record: %w", err)
	}
	if fields == nil {
		return Record{}, fmt.Errorf("malformed lock record: not an object")
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("malformed lock record: %w", err)
	}
	return r, nil
}

// ExpiredAt reports whether the record has an expiry at or before now.
func (r Record) ExpiredAt(now time.Time) bool {
	return r.Expire != nil && *r.Expire <= epochSeconds(now)
}

// ExpiresAt returns the expiry as a time, ok is false if the record never expires.
func (r Record) ExpiresAt() (t time.Time, ok bool) {
	if r.Expire == nil {
		return time.Time{}, false
	}
	return fromEpochSeconds(*r.Expire), true
}

// epochSeconds converts t to fractional seconds since the unix epoch
func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// fromEpochSeconds is the inverse of epochSeconds. Values outside the range
// of time.Duration since the epoch are clamped to that range.
func fromEpochSeconds(s float64) time.Time {
	ns := math.Round(s * float64(time.Second))
	switch {
	case ns >= float64(math.MaxInt64):
		return time.Unix(0, math.MaxInt64)
	case ns <= float64(math.MinInt64):
		return time.Unix(0, math.MinInt64)
	}
	return time.Unix(0, int64(ns))
}

func expireAt(t time.Time) *float64 {
	s := epochSeconds(t)
	return &s
}
