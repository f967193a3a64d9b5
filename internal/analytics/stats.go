// Package analytics derives practice statistics from session records. It is a
// pure read-side computation with no state of its own.
package analytics

import (
	"math"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/session"
)

const (
	// HistoryWindow is how many of the newest records feed History.
	HistoryWindow = 10
	// RecentWindow is how many of the newest records feed Today's recent list.
	RecentWindow = 5
	// RecentShown is how many of RecentWindow are returned.
	RecentShown = 3
)

type HistoryStats struct {
	TotalSessions  int `json:"totalSessions"`
	AvgAccuracy    int `json:"avgAccuracy"`
	BestAccuracy   int `json:"bestAccuracy"`
	RecentAccuracy int `json:"recentAccuracy"`
}

type TodayStats struct {
	TodayAverage   int
	TodayCount     int
	RecentSessions []session.Record
	LastAccuracy   int
}

// History summarises records ordered newest first. Empty input yields zeros.
func History(records []session.Record) HistoryStats {
	if len(records) == 0 {
		return HistoryStats{}
	}
	best := records[0].Accuracy
	for _, r := range records[1:] {
		if r.Accuracy > best {
			best = r.Accuracy
		}
	}
	return HistoryStats{
		TotalSessions:  len(records),
		AvgAccuracy:    Average(records),
		BestAccuracy:   best,
		RecentAccuracy: records[0].Accuracy,
	}
}

// Today combines the records since local midnight with the newest records.
// recent must be newest first; its head, not its best scores, is reported.
func Today(today, recent []session.Record) TodayStats {
	out := TodayStats{
		TodayAverage:   Average(today),
		TodayCount:     len(today),
		RecentSessions: []session.Record{},
	}
	if len(recent) > 0 {
		out.LastAccuracy = recent[0].Accuracy
		n := min(len(recent), RecentShown)
		out.RecentSessions = recent[:n:n]
	}
	return out
}

// Average is the mean accuracy rounded half up, or 0 for no records.
func Average(records []session.Record) int {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.Accuracy
	}
	return int(math.Floor(float64(sum)/float64(len(records)) + 0.5))
}

// StartOfDay is 00:00:00 of now's calendar day in now's location.
func StartOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}
