// Package identifier implements the value parsers and validators that
// the rest of the agent builds on: lmap names, UUIDs, tags, RFC-3339
// datetimes with explicit offsets, calendar bitsets, bounded integers
// and booleans.
package identifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Name reports whether s is a valid lmap-identifier: non-empty,
// alphanumeric plus "-._,".
func Name(s string) error {
	if s == "" {
		return fmt.Errorf("identifier: empty name")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '.' || r == '_' || r == ',':
		default:
			return fmt.Errorf("identifier: invalid character %q in name %q", r, s)
		}
	}
	return nil
}

// UUID parses and validates a UUID string.
func UUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("identifier: invalid uuid %q: %w", s, err)
	}
	return id, nil
}

// Tag validates a free-form tag used for Result enrichment and
// Suppression matching. Tags share the lmap-identifier grammar.
func Tag(s string) error {
	if err := Name(s); err != nil {
		return fmt.Errorf("identifier: invalid tag: %w", err)
	}
	return nil
}

// DateTime parses an RFC-3339 timestamp with an explicit timezone
// offset ("+HH:MM", "-HH:MM", or "Z"). Many platform formatters omit
// the colon in the offset; callers producing timestamps must not.
func DateTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("identifier: invalid datetime %q: %w", s, err)
	}
	return t, nil
}

// FormatDateTime renders t as RFC-3339 with an explicit colon in the offset.
func FormatDateTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Bool parses a boolean field, accepting the canonical "true"/"false"
// spellings used throughout the config/state/report documents.
func Bool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("identifier: invalid boolean %q", s)
	}
}

// BoundedUint32 parses an unsigned 32-bit integer and checks it falls
// within [min, max] inclusive.
func BoundedUint32(s string, min, max uint32) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("identifier: invalid integer %q: %w", s, err)
	}
	if uint32(v) < min || uint32(v) > max {
		return 0, fmt.Errorf("identifier: integer %d out of range [%d,%d]", v, min, max)
	}
	return uint32(v), nil
}

// TimezoneOffsetMinutes validates a calendar-event timezone offset in
// minutes, which must lie in (-1440, 1440).
func TimezoneOffsetMinutes(m int) error {
	if m <= -1440 || m >= 1440 {
		return fmt.Errorf("identifier: timezone offset %d out of range (-1439..1439)", m)
	}
	return nil
}

// UniqueNames reports the first duplicate name found in names, or ""
// if all names are distinct. Used to enforce §3's uniqueness
// invariant across Tasks, Schedules, Events, Suppressions and the
// Actions within a single Schedule.
func UniqueNames(names []string) string {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return n
		}
		seen[n] = struct{}{}
	}
	return ""
}

// bitsetAllOnes returns the all-ones sentinel value for a bitset of
// the given width, representing the calendar wildcard "all".
func bitsetAllOnes(width uint) uint64 {
	return (uint64(1) << width) - 1
}

// Calendar bitset widths per §3.
const (
	MonthsWidth     = 12
	DayOfMonthWidth = 31
	DayOfWeekWidth  = 7
	HoursWidth      = 24
	MinutesWidth    = 60
	SecondsWidth    = 60
)

// AllOnes returns the "all" sentinel for width bits.
func AllOnes(width uint) uint64 { return bitsetAllOnes(width) }

// IsAll reports whether bitset v is the all-ones sentinel for width bits.
func IsAll(v uint64, width uint) bool { return v == bitsetAllOnes(width) }

// HasBit reports whether bit n (0-indexed) is set in v.
func HasBit(v uint64, n uint) bool { return v&(uint64(1)<<n) != 0 }

// NormalizeWeekday maps a time.Weekday (Sunday=0) onto the spec's
// Monday=bit-0 numbering, where Sunday becomes bit 6.
func NormalizeWeekday(w time.Weekday) uint {
	if w == time.Sunday {
		return 6
	}
	return uint(w) - 1
}

// ParseDelimitedTags splits a comma-separated tag list and validates
// each element, rejecting duplicates.
func ParseDelimitedTags(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if err := Tag(p); err != nil {
			return nil, err
		}
		tags = append(tags, p)
	}
	if dup := UniqueNames(tags); dup != "" {
		return nil, fmt.Errorf("identifier: duplicate tag %q", dup)
	}
	return tags, nil
}
