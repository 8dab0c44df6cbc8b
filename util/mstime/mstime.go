// Package mstime converts between time.Time and the unix-millisecond
// timestamps carried in block headers.
package mstime

import "time"

const (
	nanosecondsInMillisecond = int64(time.Millisecond / time.Nanosecond)
	millisecondsInSecond     = int64(time.Second / time.Millisecond)
)

// Now returns the current local time, with precision of one millisecond.
func Now() time.Time {
	return ReduceToMillisecondPrecision(time.Now())
}

// NowMilliseconds returns the current time as unix milliseconds.
func NowMilliseconds() int64 {
	return TimeToUnixMilli(time.Now())
}

// UnixMilliToTime returns the time.Time corresponding to the given unix milliseconds.
func UnixMilliToTime(ms int64) time.Time {
	seconds := ms / millisecondsInSecond
	nanoseconds := (ms - seconds*millisecondsInSecond) * nanosecondsInMillisecond
	return time.Unix(seconds, nanoseconds)
}

// TimeToUnixMilli returns t as unix milliseconds.
func TimeToUnixMilli(t time.Time) int64 {
	return t.UnixNano() / nanosecondsInMillisecond
}

// DurationToMilliseconds returns d in whole milliseconds.
func DurationToMilliseconds(d time.Duration) int64 {
	return int64(d / time.Millisecond)
}

// ReduceToMillisecondPrecision truncates t to a whole millisecond.
func ReduceToMillisecondPrecision(t time.Time) time.Time {
	nanoseconds := int64(t.Nanosecond())
	millisecondPrecisionNanoSeconds := (nanoseconds / nanosecondsInMillisecond) * nanosecondsInMillisecond
	return time.Unix(t.Unix(), millisecondPrecisionNanoSeconds)
}
