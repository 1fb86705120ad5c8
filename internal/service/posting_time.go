package service

import (
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/util"
)

// postingTime is when a posting for an entry dated date takes effect on the
// journal. Entries dated today post at now, keeping their order within the
// day. Entries for any other day post at date itself, which is midnight of
// that day when the date arrived as a plain calendar day.
func postingTime(date, now time.Time, loc *time.Location) time.Time {
	if date.IsZero() || util.IsSameDay(date, now, loc) {
		return now
	}
	return date
}
