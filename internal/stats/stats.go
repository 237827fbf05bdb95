// Package stats derives dashboard figures from a protocol snapshot.
package stats

import (
	"sort"
	"time"

	"github.com/adamscao/protocolreg/internal/models"
)

// Summary holds the dashboard counters
type Summary struct {
	Total      int            `json:"total"`
	Pending    int            `json:"pending"`
	Overdue    int            `json:"overdue"`
	Requesters int            `json:"requesters"`
	ByStatus   []models.Count `json:"by_status"`
	ByType     []models.Count `json:"by_type"`
}

// TypeShare is one row of the per-type report summary
type TypeShare struct {
	DocumentType string  `json:"document_type"`
	Count        int     `json:"count"`
	Percent      float64 `json:"percent"`
}

// Compute summarises protocols as of today. Requesters is left for the caller.
func Compute(protocols []*models.Protocol, today time.Time) Summary {
	s := Summary{
		Total:    len(protocols),
		ByStatus: CountByStatus(protocols),
		ByType:   CountByType(protocols),
	}
	for _, p := range protocols {
		if p.Status == models.StatusPending {
			s.Pending++
		}
		if p.IsOverdue(today) {
			s.Overdue++
		}
	}
	return s
}

// Overdue returns pending protocols whose due date is before today, earliest due first
func Overdue(protocols []*models.Protocol, today time.Time) []*models.Protocol {
	var out []*models.Protocol
	for _, p := range protocols {
		if p.IsOverdue(today) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(*out[j].DueDate)
	})
	return out
}

// CountByStatus counts protocols per status, every known status included
func CountByStatus(protocols []*models.Protocol) []models.Count {
	counts := make(map[models.Status]int, len(models.Statuses))
	for _, p := range protocols {
		counts[p.Status]++
	}

	out := make([]models.Count, 0, len(models.Statuses))
	for _, st := range models.Statuses {
		out = append(out, models.Count{Key: string(st), Count: counts[st]})
		delete(counts, st)
	}
	// statuses written by older versions
	for st, n := range counts {
		out = append(out, models.Count{Key: string(st), Count: n})
	}
	sortCounts(out)
	return out
}

// CountByType counts protocols per document type
func CountByType(protocols []*models.Protocol) []models.Count {
	counts := map[string]int{}
	for _, p := range protocols {
		counts[p.DocumentType]++
	}

	out := make([]models.Count, 0, len(counts))
	for t, n := range counts {
		out = append(out, models.Count{Key: t, Count: n})
	}
	sortCounts(out)
	return out
}

// ShareByType returns per-type counts with their percentage of the total
func ShareByType(protocols []*models.Protocol) []TypeShare {
	counts := CountByType(protocols)
	out := make([]TypeShare, 0, len(counts))
	for _, c := range counts {
		share := TypeShare{DocumentType: c.Key, Count: c.Count}
		if len(protocols) > 0 {
			share.Percent = float64(c.Count) * 100 / float64(len(protocols))
		}
		out = append(out, share)
	}
	return out
}

// sortCounts orders by count descending, then key ascending
func sortCounts(c []models.Count) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Count != c[j].Count {
			return c[i].Count > c[j].Count
		}
		return c[i].Key < c[j].Key
	})
}
