package layout

import (
	"sort"
	"time"

	"calgrid/internal/model"
)

// Lane is the horizontal slot given to an event inside its overlap cluster.
// The event occupies 1/Count of the column width at offset Index/Count.
type Lane struct {
	Event model.Event
	Index int
	Count int
}

// AssignLanes lays overlapping events side by side. Events are taken in start
// order; each goes to the first lane whose previous occupant has ended, and
// every event in a cluster of transitively overlapping events shares the
// cluster's lane count. Events with no positive duration occupy minDuration.
// The result is in start order.
func AssignLanes(events []model.Event, minDuration time.Duration) []Lane {
	sorted := append([]model.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := make([]Lane, 0, len(sorted))
	var (
		laneEnds     []time.Time
		clusterFirst int
		clusterEnd   time.Time
	)

	closeCluster := func() {
		for i := clusterFirst; i < len(out); i++ {
			out[i].Count = len(laneEnds)
		}
		laneEnds = laneEnds[:0]
		clusterFirst = len(out)
	}

	for _, e := range sorted {
		end := e.End
		if !end.After(e.Start) {
			end = e.Start.Add(minDuration)
		}

		if len(out) > 0 && !e.Start.Before(clusterEnd) {
			closeCluster()
		}

		idx := -1
		for i, laneEnd := range laneEnds {
			if !laneEnd.After(e.Start) {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = len(laneEnds)
			laneEnds = append(laneEnds, end)
		} else {
			laneEnds[idx] = end
		}

		if clusterFirst == len(out) || end.After(clusterEnd) {
			clusterEnd = end
		}
		out = append(out, Lane{Event: e, Index: idx})
	}
	closeCluster()

	return out
}
