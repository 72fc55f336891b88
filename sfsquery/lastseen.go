package sfsquery

import (
	"strings"
	"time"
)

// The API reports "lastseen" as a zone-less timestamp. StopForumSpam serves
// these in GMT, so they are always interpreted as UTC.
var lastSeenLayouts = []string{
	time.DateTime,
	time.RFC3339,
	time.DateOnly,
}

// parseLastSeen converts an API "lastseen" value into Unix seconds.
func parseLastSeen(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range lastSeenLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}
