package dates

import "time"

const (
	DateFormat = "2006-01-02"
)

// DateFromUnixMilli returns the UTC calendar day of a millisecond epoch
// timestamp; the time of day is dropped.
func DateFromUnixMilli(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateFormat)
}

// TrailingWindow returns the first and last day of a window of the given
// number of days ending at now.
func TrailingWindow(now time.Time, days int) (string, string) {
	end := now.UTC()
	start := end.AddDate(0, 0, -days)
	return start.Format(DateFormat), end.Format(DateFormat)
}
