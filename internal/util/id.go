// Package util provides shared utility functions.
package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// ErrInvalidID is returned when an id argument cannot be parsed.
var ErrInvalidID = errors.New("invalid id")

// Placeholders hands out locally unique negative ids for tasks the server
// has not confirmed yet. The zero value is ready to use.
type Placeholders struct {
	last atomic.Int64
}

// Next returns the next placeholder id: -1, -2, ...
func (p *Placeholders) Next() int64 {
	return p.last.Add(-1)
}

// IsPlaceholder reports whether id was produced by a Placeholders source.
func IsPlaceholder(id int64) bool {
	return id < 0
}

// ParseID parses a positive server id. A leading "#" is accepted, so
// "#42" and "42" are equivalent.
//
// Examples:
//
//	ParseID("task", "42")  → 42
//	ParseID("week", "#7")  → 7
//	ParseID("task", "-1")  → error
func ParseID(entity, s string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "#")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s id %q: %w", entity, s, ErrInvalidID)
	}
	return id, nil
}

// ParseIDList parses ids separated by commas and/or whitespace, dropping
// duplicates while keeping the first-seen order.
func ParseIDList(entity, s string) ([]int64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	seen := make(map[int64]bool, len(fields))
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := ParseID(entity, f)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
