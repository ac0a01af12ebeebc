package normalize

import (
	"fmt"
	"time"
)

// Indonesian names indexed by time.Weekday (Sunday first) and time.Month-1.
var (
	weekdayNames = [7]string{
		"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu",
	}
	monthNames = [12]string{
		"Januari", "Februari", "Maret", "April", "Mei", "Juni",
		"Juli", "Agustus", "September", "Oktober", "November", "Desember",
	}
)

// WeekdayName returns the Indonesian weekday name of t.
func WeekdayName(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

// MonthName returns the Indonesian month name of t.
func MonthName(t time.Time) string {
	return monthNames[t.Month()-1]
}

// FormatDate renders t as "D Month YYYY", e.g. "7 Januari 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), MonthName(t), t.Year())
}

// FormatClock renders the time of day of t as HH:MM:SS.
func FormatClock(t time.Time) string {
	return t.Format(time.TimeOnly)
}
