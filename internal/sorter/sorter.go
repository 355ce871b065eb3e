// Package sorter orders a user's registered events for the "my events" view.
package sorter

import (
	"sort"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
)

// Sort returns upcoming events (dateTime >= now) soonest first, followed by past
// events most recent first. Ties keep input order. The input is not modified.
func Sort(events []domain.EventWithID, now time.Time) []domain.EventWithID {
	nowMs := now.UnixMilli()

	future := make([]domain.EventWithID, 0, len(events))
	past := make([]domain.EventWithID, 0)
	for _, e := range events {
		if e.Event.DateTime >= nowMs {
			future = append(future, e)
		} else {
			past = append(past, e)
		}
	}

	sort.SliceStable(future, func(i, j int) bool {
		return future[i].Event.DateTime < future[j].Event.DateTime
	})
	sort.SliceStable(past, func(i, j int) bool {
		return past[i].Event.DateTime > past[j].Event.DateTime
	})

	return append(future, past...)
}

// Split is Sort with the two buckets returned separately.
func Split(events []domain.EventWithID, now time.Time) (upcoming, past []domain.EventWithID) {
	sorted := Sort(events, now)
	nowMs := now.UnixMilli()
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].Event.DateTime < nowMs })
	return sorted[:i:i], sorted[i:]
}
