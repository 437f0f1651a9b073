package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinetix/ima-backend/internal/domain"
)

func incident(channel domain.Channel, state domain.State) domain.Incident {
	return domain.Incident{Channel: channel, CurrentState: state}
}

func sumChannels(m map[domain.Channel]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func sumStates(m map[domain.State]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func TestEmptyCollection(t *testing.T) {
	byChannel := CountByChannel(nil)
	assert.Len(t, byChannel, 5)
	for _, channel := range domain.AllChannels {
		assert.Equal(t, 0, byChannel[channel])
	}

	byState := CountByState([]domain.Incident{})
	assert.Len(t, byState, 9)
	for _, state := range domain.AllStates {
		assert.Equal(t, 0, byState[state])
	}
}

func TestCountByChannel(t *testing.T) {
	incidents := []domain.Incident{
		incident(domain.ChannelWeb, domain.StateNew),
		incident(domain.ChannelWeb, domain.StateInProgress),
		incident(domain.ChannelEmail, domain.StateClosed),
	}

	counts := CountByChannel(incidents)

	assert.Equal(t, map[domain.Channel]int{
		domain.ChannelWeb:        2,
		domain.ChannelEmail:      1,
		domain.ChannelCallCenter: 0,
		domain.ChannelWhatsApp:   0,
		domain.ChannelCommercial: 0,
	}, counts)
}

func TestCountByState(t *testing.T) {
	incidents := []domain.Incident{
		incident(domain.ChannelWeb, domain.StateNew),
		incident(domain.ChannelWhatsApp, domain.StateNew),
		incident(domain.ChannelEmail, domain.StateCancelled),
	}

	counts := CountByState(incidents)

	assert.Len(t, counts, 9)
	assert.Equal(t, 2, counts[domain.StateNew])
	assert.Equal(t, 1, counts[domain.StateCancelled])
	assert.Equal(t, 0, counts[domain.StateResolved])
}

func TestOrderIndependent(t *testing.T) {
	a := []domain.Incident{
		incident(domain.ChannelWeb, domain.StateNew),
		incident(domain.ChannelCallCenter, domain.StateResolved),
		incident(domain.ChannelWeb, domain.StateAssigned),
		incident(domain.ChannelCommercial, domain.StateResolved),
	}
	b := []domain.Incident{a[3], a[1], a[0], a[2]}

	assert.Equal(t, Compute(a), Compute(b))
}

func TestSumsMatchPopulation(t *testing.T) {
	var incidents []domain.Incident
	for i, state := range domain.AllStates {
		channel := domain.AllChannels[i%len(domain.AllChannels)]
		for n := 0; n <= i; n++ {
			incidents = append(incidents, incident(channel, state))
		}
	}

	result := Compute(incidents)

	assert.Equal(t, len(incidents), result.Total)
	assert.Equal(t, len(incidents), sumChannels(result.ByChannel))
	assert.Equal(t, len(incidents), sumStates(result.ByState))
}
