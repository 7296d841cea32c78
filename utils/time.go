// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// UnixMilli returns t as milliseconds since the epoch, the unit browsers use for notification timestamps
func UnixMilli(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// HoursBefore returns t shifted back by the given number of hours
func HoursBefore(t time.Time, hours int) time.Time {
	return t.Add(-time.Duration(hours) * time.Hour)
}
