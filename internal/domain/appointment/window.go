package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is an hour-of-day range [Start, End). Start > End wraps past midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) String() string { return fmt.Sprintf("%d-%d", w.Start, w.End) }

func (w Window) Contains(hour int) bool {
	if w.Start < w.End {
		return w.Start <= hour && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}

type Windows []Window

// IsActive reports whether polling is permitted at now. An empty set is always active.
func IsActive(now time.Time, windows Windows) bool {
	if len(windows) == 0 {
		return true
	}
	h := now.Hour()
	for _, w := range windows {
		if w.Contains(h) {
			return true
		}
	}
	return false
}

// ParseWindows parses "22-6,8-10" into a window set.
func ParseWindows(s string) (Windows, error) {
	var out Windows
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("invalid active window %q (want START-END)", part)
		}
		start, err := parseHour(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid active window %q: %w", part, err)
		}
		end, err := parseHour(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid active window %q: %w", part, err)
		}
		out = append(out, Window{Start: start, End: end})
	}
	return out, nil
}

func parseHour(s string) (int, error) {
	h, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 24 {
		return 0, fmt.Errorf("hour %d out of range 0-24", h)
	}
	return h, nil
}

func (ws Windows) String() string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.String()
	}
	return strings.Join(parts, ",")
}
