package formatter

import "time"

const (
	UnknownTime = "未知时间"
	timeLayout  = "2006-01-02 15:04:05"

	// values above this are epoch milliseconds
	millisThreshold = 1_000_000_000_000
)

// FormatTime renders an epoch timestamp in seconds or milliseconds using the
// local time zone.
func FormatTime(ts int64) string {
	return formatTimeIn(ts, time.Local)
}

func formatTimeIn(ts int64, loc *time.Location) string {
	if ts > millisThreshold {
		ts /= 1000
	}
	if ts < 0 {
		return UnknownTime
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Unix(ts, 0).In(loc)
	if t.Year() < 1 || t.Year() > 9999 {
		return UnknownTime
	}
	return t.Format(timeLayout)
}
