package validate

import (
	"fmt"

	"gitlab.ozon.dev/qwestard/orders/internal/models"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Details is the human-readable text surfaced to RPC callers.
func (e *ValidationError) Details() string {
	return fmt.Sprintf("%s is %s", e.Field, e.Reason)
}

func StartRequest(req *models.StartRequest) error {
	if req.ClientID == "" {
		return &ValidationError{Field: "client_id", Reason: "empty"}
	}
	return nil
}

func UpdateEvent(ev *models.UpdateEvent) error {
	if ev.ClientID == "" {
		return &ValidationError{Field: "client_id", Reason: "empty"}
	}
	return nil
}
