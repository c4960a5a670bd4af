package git

import (
	"fmt"
	"time"
)

// When returns the commit time for a publish, formatted "<unix> <±HHMM>".
// A non-nil ts pins the time to that second, which keeps rebuilds of the same
// content byte-identical.
func When(ts *int64) string {
	return FormatWhen(commitTime(ts, time.Now))
}

// FormatWhen renders t the way git stores it in commit headers.
func FormatWhen(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%d %c%02d%02d", t.Unix(), sign, offset/3600, offset%3600/60)
}

func commitTime(ts *int64, now func() time.Time) time.Time {
	if ts != nil {
		return time.Unix(*ts, 0).In(time.Local)
	}
	return now().Truncate(time.Second)
}
