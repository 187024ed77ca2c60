package circular

import (
	"fmt"
	"regexp"
	"time"
)

// TimestampLayout is appended to every local artifact name.
const TimestampLayout = "20060102_150405"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SafeName replaces every character outside [A-Za-z0-9_.-] with an underscore.
func SafeName(raw string) string {
	return unsafeNameChars.ReplaceAllString(raw, "_")
}

// ArtifactName builds <prefix>_<safe circular number>_<timestamp>.<ext>.
func ArtifactName(prefix, circularNumber string, at time.Time, format Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", SafeName(prefix), SafeName(circularNumber), at.Format(TimestampLayout), format)
}

// FolderFor returns the year/month archive folder for a point in time.
func FolderFor(at time.Time) []string {
	return []string{at.Format("2006"), at.Format("January")}
}
