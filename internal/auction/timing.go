package auction

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/katatrina/gundam-live/internal/apperror"
)

// ServerStatus is the auction status as reported by the backend.
type ServerStatus string

const (
	ServerStatusScheduled ServerStatus = "scheduled"
	ServerStatusActive    ServerStatus = "active"
	ServerStatusPaused    ServerStatus = "paused"
	ServerStatusEnded     ServerStatus = "ended"
	ServerStatusCompleted ServerStatus = "completed"
	ServerStatusCanceled  ServerStatus = "canceled"
	ServerStatusUnknown   ServerStatus = ""
)

// ParseServerStatus normalises the backend spelling. Unknown values map to ServerStatusUnknown,
// which lets the timing fields decide.
func ParseServerStatus(s string) ServerStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scheduled":
		return ServerStatusScheduled
	case "active":
		return ServerStatusActive
	case "paused":
		return ServerStatusPaused
	case "ended":
		return ServerStatusEnded
	case "completed":
		return ServerStatusCompleted
	case "canceled", "cancelled":
		return ServerStatusCanceled
	default:
		return ServerStatusUnknown
	}
}

// Status is the lifecycle status derived on the client.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusEnded     Status = "ended"
)

// Timing is an immutable snapshot of the timing fields of an auction.
// A zero EndTime means the backend sent no usable end time.
type Timing struct {
	StartTime    *time.Time
	EndTime      time.Time
	PausedAt     *time.Time
	ServerStatus ServerStatus
}

// DeriveStatus computes the status of an auction at now.
// Server overrides (pause, cancel) win over anything inferred from time, and Scheduled is
// checked before Ended so a future start never renders as ended.
func DeriveStatus(timing Timing, now time.Time) Status {
	switch {
	case timing.ServerStatus == ServerStatusPaused:
		return StatusPaused
	case timing.ServerStatus == ServerStatusCanceled:
		return StatusCancelled
	case timing.StartTime != nil && timing.StartTime.After(now):
		return StatusScheduled
	case timing.EndTime.IsZero() || !timing.EndTime.After(now):
		return StatusEnded
	default:
		return StatusActive
	}
}

// ParseTiming builds a Timing from the raw RFC 3339 strings of an auction snapshot.
//
// A missing or malformed end or start time yields a *apperror.DataIntegrityWarning together
// with a Timing whose EndTime is zero, so its derived status is Ended and bidding is never
// offered on unparseable data. A malformed paused_at is dropped and reported the same way.
func ParseTiming(startTime *string, endTime string, pausedAt *string, status string) (Timing, error) {
	timing := Timing{ServerStatus: ParseServerStatus(status)}
	var warning error

	if startTime != nil && *startTime != "" {
		t, err := time.Parse(time.RFC3339, *startTime)
		if err != nil {
			// không biết phiên bắt đầu khi nào thì không mở đặt giá
			return timing, &apperror.DataIntegrityWarning{Field: "start_time", Value: *startTime, Err: err}
		}
		timing.StartTime = &t
	}

	if pausedAt != nil && *pausedAt != "" {
		t, err := time.Parse(time.RFC3339, *pausedAt)
		if err != nil {
			warning = &apperror.DataIntegrityWarning{Field: "paused_at", Value: *pausedAt, Err: err}
		} else {
			timing.PausedAt = &t
		}
	}

	if endTime == "" {
		return timing, &apperror.DataIntegrityWarning{Field: "end_time", Value: endTime}
	}
	end, err := time.Parse(time.RFC3339, endTime)
	if err != nil {
		return timing, &apperror.DataIntegrityWarning{Field: "end_time", Value: endTime, Err: err}
	}
	timing.EndTime = end

	if timing.StartTime != nil && !timing.StartTime.Before(end) {
		warning = &apperror.DataIntegrityWarning{
			Field: "start_time",
			Value: *startTime,
			Err:   fmt.Errorf("start_time must be before end_time %s", endTime),
		}
	}

	return timing, warning
}

// Reading is what a view shows for an auction at one instant.
type Reading struct {
	Status    Status        `json:"status"`
	Label     string        `json:"label"`
	Target    *time.Time    `json:"target,omitempty"`
	Remaining time.Duration `json:"remaining"`
	BiddingOn bool          `json:"bidding_open"`
	At        time.Time     `json:"at"`
}

// Describe is the single place where a status is turned into display text and a countdown.
func Describe(timing Timing, now time.Time) Reading {
	reading := Reading{
		Status: DeriveStatus(timing, now),
		At:     now,
	}

	switch reading.Status {
	case StatusPaused:
		if timing.PausedAt != nil {
			reading.Label = "paused " + humanize.RelTime(*timing.PausedAt, now, "ago", "from now")
		} else {
			reading.Label = "paused"
		}
	case StatusCancelled:
		reading.Label = "cancelled"
	case StatusScheduled:
		start := *timing.StartTime
		reading.Target = &start
		reading.Remaining = start.Sub(now)
		reading.Label = "starts " + humanize.RelTime(start, now, "ago", "from now")
	case StatusEnded:
		reading.Label = "ended"
	case StatusActive:
		end := timing.EndTime
		reading.Target = &end
		reading.Remaining = end.Sub(now)
		reading.BiddingOn = true
		reading.Label = "ends " + humanize.RelTime(end, now, "ago", "from now")
	}

	return reading
}
