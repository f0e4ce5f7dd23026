// Package linespec parses the line references attached to feedback points.
//
// A line spec is a comma separated list of 1-based line numbers and inclusive
// ranges, for example "3,4,10-15". Parsed output keeps token order and does not
// deduplicate: callers test membership through Set.
package linespec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Limits applied while parsing. MaxLines caps the total expansion of one spec.
const (
	MaxRangeSpan = 10000
	MaxLines     = 10000
	MaxLine      = 1000000
)

// ErrMalformedLineSpec indicates the line spec cannot be resolved to line numbers.
var ErrMalformedLineSpec = errors.New("malformed line spec")

// Parse expands spec into line numbers in token order.
func Parse(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedLineSpec)
	}

	parts := strings.Split(spec, ",")
	lines := make([]int, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(part)
		if token == "" {
			return nil, fmt.Errorf("%w: empty token in %q", ErrMalformedLineSpec, spec)
		}

		start, end, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		if len(lines)+end-start+1 > MaxLines {
			return nil, fmt.Errorf("%w: more than %d lines in %q", ErrMalformedLineSpec, MaxLines, spec)
		}
		for i := start; i <= end; i++ {
			lines = append(lines, i)
		}
	}

	return lines, nil
}

func parseToken(token string) (int, int, error) {
	startRaw, endRaw, isRange := strings.Cut(token, "-")
	start, err := parseLine(startRaw)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return start, start, nil
	}

	end, err := parseLine(endRaw)
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("%w: reversed range %q", ErrMalformedLineSpec, token)
	}
	if end-start >= MaxRangeSpan {
		return 0, 0, fmt.Errorf("%w: range %q too wide", ErrMalformedLineSpec, token)
	}
	return start, end, nil
}

func parseLine(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformedLineSpec, value)
	}
	if n <= 0 || n > MaxLine {
		return 0, fmt.Errorf("%w: line %d out of range", ErrMalformedLineSpec, n)
	}
	return n, nil
}

// Set indexes lines for constant-time membership checks.
func Set(lines []int) map[int]struct{} {
	set := make(map[int]struct{}, len(lines))
	for _, l := range lines {
		set[l] = struct{}{}
	}
	return set
}

// Min returns the smallest line number, or false when lines is empty.
func Min(lines []int) (int, bool) {
	if len(lines) == 0 {
		return 0, false
	}
	min := lines[0]
	for _, l := range lines[1:] {
		if l < min {
			min = l
		}
	}
	return min, true
}

// Label renders spec for display, e.g. "Line 5" or "Lines 3,10-12".
func Label(spec string) string {
	spec = strings.TrimSpace(spec)
	if strings.ContainsAny(spec, ",-") {
		return "Lines " + spec
	}
	return "Line " + spec
}
