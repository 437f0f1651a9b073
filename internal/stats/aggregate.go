// Package stats derives dashboard counters from a snapshot of incidents.
package stats

import "github.com/kinetix/ima-backend/internal/domain"

// DashboardStats is the summary rendered by the dashboard charts.
type DashboardStats struct {
	ByChannel map[domain.Channel]int
	ByState   map[domain.State]int
	Total     int
}

// CountByChannel counts incidents per intake channel. Every channel is present.
func CountByChannel(incidents []domain.Incident) map[domain.Channel]int {
	counts := make(map[domain.Channel]int, len(domain.AllChannels))
	for _, channel := range domain.AllChannels {
		counts[channel] = 0
	}
	for i := range incidents {
		counts[incidents[i].Channel]++
	}
	return counts
}

// CountByState counts incidents per workflow state. Every state is present.
func CountByState(incidents []domain.Incident) map[domain.State]int {
	counts := make(map[domain.State]int, len(domain.AllStates))
	for _, state := range domain.AllStates {
		counts[state] = 0
	}
	for i := range incidents {
		counts[incidents[i].CurrentState]++
	}
	return counts
}

// Compute builds both groupings in one call.
func Compute(incidents []domain.Incident) DashboardStats {
	return DashboardStats{
		ByChannel: CountByChannel(incidents),
		ByState:   CountByState(incidents),
		Total:     len(incidents),
	}
}
