package response

import "github.com/volunteerhub/volunteer-hub-api/internal/domain"

type ListEventsResponse struct {
	Events []domain.Event `json:"events"`
}

type CompleteEventResponse struct {
	EventID        uint  `json:"event_id"`
	MarkedComplete int   `json:"marked_complete"`
}
