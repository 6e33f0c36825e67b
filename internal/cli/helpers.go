package cli

import (
	"fmt"
	"strconv"
	"time"
)

// fixedClock parses a --timestamp value. An empty value means the wall clock.
func fixedClock(value string) (func() time.Time, error) {
	if value == "" {
		return time.Now, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --timestamp %q: must be RFC3339 (e.g. 2024-11-05T10:30:00Z)", value)
	}
	return func() time.Time { return ts }, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
