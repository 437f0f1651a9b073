package domain

import "time"

// State enumerates the workflow stages an incident can occupy.
type State string

const (
	StateNew             State = "NUEVO"
	StateInAnalysis      State = "EN_ANALISIS"
	StateAssigned        State = "ASIGNADO"
	StateInProgress      State = "EN_CURSO"
	StateWaitingClient   State = "ESPERANDO_CLIENTE"
	StateWaitingProvider State = "ESPERANDO_PROVEEDOR"
	StateResolved        State = "RESUELTO"
	StateClosed          State = "CERRADO"
	StateCancelled       State = "CANCELADO"
)

// Service is the service category an incident affects.
type Service string

const (
	ServiceInternet  Service = "INTERNET"
	ServiceTelephony Service = "TELEFONIA"
	ServiceMPLS      Service = "MPLS"
	ServiceOther     Service = "OTRO"
)

// Channel is the intake medium an incident was reported through.
type Channel string

const (
	ChannelWeb        Channel = "WEB"
	ChannelCallCenter Channel = "CALL_CENTER"
	ChannelWhatsApp   Channel = "WHATSAPP"
	ChannelEmail      Channel = "EMAIL"
	ChannelCommercial Channel = "COMERCIAL"
)

// AllStates lists every state in workflow order.
var AllStates = []State{
	StateNew,
	StateInAnalysis,
	StateAssigned,
	StateInProgress,
	StateWaitingClient,
	StateWaitingProvider,
	StateResolved,
	StateClosed,
	StateCancelled,
}

// AllChannels lists every intake channel.
var AllChannels = []Channel{
	ChannelWeb,
	ChannelCallCenter,
	ChannelWhatsApp,
	ChannelEmail,
	ChannelCommercial,
}

// AllServices lists every service category.
var AllServices = []Service{
	ServiceInternet,
	ServiceTelephony,
	ServiceMPLS,
	ServiceOther,
}

// Incident is the aggregate tracked by the dashboard.
type Incident struct {
	ID            string
	Title         string
	Description   string
	Service       Service
	Channel       Channel
	Installer     string
	Client        string
	CreatedBy     string
	CurrentState  State
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	Version       int64
	History       []StateChange
}

// Valid reports whether s is one of the nine workflow states.
func (s State) Valid() bool {
	for _, candidate := range AllStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// Valid reports whether c is a known intake channel.
func (c Channel) Valid() bool {
	for _, candidate := range AllChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known service category.
func (s Service) Valid() bool {
	for _, candidate := range AllServices {
		if candidate == s {
			return true
		}
	}
	return false
}

// Label returns the dashboard display name.
func (s State) Label() string {
	return stateLabels[s]
}

// Label returns the dashboard display name.
func (c Channel) Label() string {
	return channelLabels[c]
}

// Label returns the dashboard display name.
func (s Service) Label() string {
	return serviceLabels[s]
}

var stateLabels = map[State]string{
	StateNew:             "Nuevo",
	StateInAnalysis:      "En Análisis",
	StateAssigned:        "Asignado",
	StateInProgress:      "En Curso",
	StateWaitingClient:   "Esperando Cliente",
	StateWaitingProvider: "Esperando Proveedor",
	StateResolved:        "Resuelto",
	StateClosed:          "Cerrado",
	StateCancelled:       "Cancelado",
}

var channelLabels = map[Channel]string{
	ChannelWeb:        "Web",
	ChannelCallCenter: "Call Center",
	ChannelWhatsApp:   "WhatsApp",
	ChannelEmail:      "Email",
	ChannelCommercial: "Comercial",
}

var serviceLabels = map[Service]string{
	ServiceInternet:  "Internet",
	ServiceTelephony: "Telefonía",
	ServiceMPLS:      "MPLS",
	ServiceOther:     "Otro",
}
