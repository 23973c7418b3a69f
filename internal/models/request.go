package models

import "time"

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestAssigned   RequestStatus = "assigned"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

// ServiceRequest mirrors the request store's view of a job. The core does not
// own request lifecycle; rows land here through the sync endpoint so the
// proactive scheduler can read them.
type ServiceRequest struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	ServiceType string        `json:"service_type"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
