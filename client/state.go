package client

import (
	"medshift/core/incidents"
	"medshift/core/store"
)

// Op identifies which server call an event belongs to.
type Op string

const (
	OpSearch           Op = "incidents/search"
	OpGet              Op = "incidents/get"
	OpCreate           Op = "incidents/create"
	OpAdvanceStep      Op = "incidents/updateStep"
	OpSetStatus        Op = "incidents/updateStatus"
	OpAddAttachment    Op = "incidents/addAttachment"
	OpDeleteAttachment Op = "incidents/deleteAttachment"
)

// Phase is the async lifecycle stage of an operation.
type Phase string

const (
	Pending   Phase = "pending"
	Fulfilled Phase = "fulfilled"
	Rejected  Phase = "rejected"
)

const fallbackError = "request failed"

type Filters struct {
	Status       string
	Step         string
	IncidentType string
}

type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// State mirrors what a list/detail incident view needs: the current page,
// the selected record, and the async flags.
type State struct {
	Incidents  []store.Incident
	Selected   *store.Incident
	Filters    Filters
	Pagination Pagination
	Loading    bool
	Error      string
}

func NewState() State {
	return State{Incidents: []store.Incident{}}
}

// Event is one lifecycle transition of one operation. Which payload fields
// are set depends on Op and Phase.
type Event struct {
	Op    Op
	Phase Phase

	SearchResult *incidents.SearchResult
	Incident     *store.Incident
	Filters      *Filters
	Err          string

	// Set on OpDeleteAttachment, where the server responds without a body.
	IncidentID   int64
	AttachmentID string
}

// Reduce applies an event to the state and returns the next state. It never
// mutates its input. Mutating operations patch the matching row in the list
// and the selected record, so list and detail stay consistent without a
// refetch.
func Reduce(s State, e Event) State {
	next := s
	switch e.Phase {
	case Pending:
		next.Loading = true
		next.Error = ""
		return next
	case Rejected:
		next.Loading = false
		if e.Err != "" {
			next.Error = e.Err
		} else {
			next.Error = fallbackError
		}
		return next
	case Fulfilled:
		next.Loading = false
	default:
		return next
	}

	switch e.Op {
	case OpSearch:
		if e.SearchResult != nil {
			next.Incidents = e.SearchResult.Items
			if next.Incidents == nil {
				next.Incidents = []store.Incident{}
			}
			next.Pagination = Pagination{
				Page:       e.SearchResult.Page,
				Limit:      e.SearchResult.Limit,
				Total:      e.SearchResult.Total,
				TotalPages: e.SearchResult.TotalPages,
			}
		}
		if e.Filters != nil {
			next.Filters = *e.Filters
		}
	case OpGet:
		next.Selected = e.Incident
	case OpCreate:
		if e.Incident != nil {
			next.Incidents = append([]store.Incident{*e.Incident}, s.Incidents...)
			next.Pagination.Total = s.Pagination.Total + 1
		}
	case OpAdvanceStep, OpSetStatus, OpAddAttachment:
		if e.Incident != nil {
			next.Incidents = patchList(s.Incidents, *e.Incident)
			if s.Selected != nil && s.Selected.ID == e.Incident.ID {
				updated := *e.Incident
				next.Selected = &updated
			}
		}
	case OpDeleteAttachment:
		// The delete endpoint returns no incident, so the event carries the
		// ids and the attachment is dropped in place.
		if e.IncidentID != 0 && e.AttachmentID != "" {
			next.Incidents = dropAttachment(s.Incidents, e.IncidentID, e.AttachmentID)
			if s.Selected != nil && s.Selected.ID == e.IncidentID {
				updated := *s.Selected
				updated.Attachments = withoutAttachment(s.Selected.Attachments, e.AttachmentID)
				next.Selected = &updated
			}
		}
	}
	return next
}

func dropAttachment(items []store.Incident, incidentID int64, attachmentID string) []store.Incident {
	out := make([]store.Incident, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == incidentID {
			out[i].Attachments = withoutAttachment(out[i].Attachments, attachmentID)
			break
		}
	}
	return out
}

func withoutAttachment(atts []store.IncidentAttachment, attachmentID string) []store.IncidentAttachment {
	out := make([]store.IncidentAttachment, 0, len(atts))
	for _, a := range atts {
		if a.ID != attachmentID {
			out = append(out, a)
		}
	}
	return out
}

func patchList(items []store.Incident, updated store.Incident) []store.Incident {
	out := make([]store.Incident, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == updated.ID {
			out[i] = updated
			break
		}
	}
	return out
}
