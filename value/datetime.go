package value

import (
	"time"

	"github.com/shopspring/decimal"
)

// excelEpoch is the day Excel serial 0 represents: 1899-12-30. Excel's
// serial 1 is 1899-12-31 and serial 60 is the famous phantom 1900-02-29;
// since every modern Excel file post-dates that bug, and the original
// source we're grounded on doesn't model it either, we intentionally do
// not reproduce the leap-year bug here.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// TimeToSerial converts a time.Time to its Excel serial number: whole days
// since the epoch, plus a fractional day for the time-of-day component.
func TimeToSerial(t time.Time) decimal.Decimal {
	days := t.Sub(excelEpoch).Hours() / 24
	return decimal.NewFromFloat(days)
}

// SerialToTime converts an Excel serial number back to a time.Time.
func SerialToTime(serial decimal.Decimal) time.Time {
	f, _ := serial.Float64()
	wholeDays := int64(f)
	frac := f - float64(wholeDays)
	t := excelEpoch.AddDate(0, 0, int(wholeDays))
	if frac != 0 {
		t = t.Add(time.Duration(frac * 24 * float64(time.Hour)))
	}
	return t
}

// DateOnly truncates t to midnight, used when a criterion or function
// needs the calendar date without the time-of-day component.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
