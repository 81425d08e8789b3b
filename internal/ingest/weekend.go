package ingest

import (
	"path/filepath"
	"strings"
	"time"
)

// WeekendKey derives the weekend group identifier for a service time. The key
// is the Sunday date (YYYY-MM-DD): a Saturday service at or past the vigil
// cutoff hour counts as the next day's Sunday liturgy, a Sunday service
// groups with its own date, and anything else (weekday feasts) groups with
// the recording date itself.
func WeekendKey(serviceAt time.Time, vigilCutoffHour int) string {
	day := serviceAt
	if serviceAt.Weekday() == time.Saturday && serviceAt.Hour() >= vigilCutoffHour {
		day = serviceAt.AddDate(0, 0, 1)
	}
	return day.Format("2006-01-02")
}

// TitleFromSource derives a display title from a source filename by dropping
// the extension: "Mass-2026-03-08-0930.mp3" becomes "Mass-2026-03-08-0930".
func TitleFromSource(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
