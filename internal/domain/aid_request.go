package domain

import "time"

// Estados del ciclo de vida de una solicitud de ayuda.
const (
	AidRequestPending    = "pending"
	AidRequestApproved   = "approved"
	AidRequestInProgress = "in_progress"
	AidRequestResolved   = "resolved"
	AidRequestRejected   = "rejected"
)

type AidRequest struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidAidRequestStatus indica si el estado es uno de los conocidos.
func ValidAidRequestStatus(status string) bool {
	switch status {
	case AidRequestPending, AidRequestApproved, AidRequestInProgress, AidRequestResolved, AidRequestRejected:
		return true
	}
	return false
}
