// Package audit records who asked the assistant for what, and whether it was allowed.
package audit

import (
	"encoding/json"
	"time"

	auditDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/audit"
)

// Entry is an access attempt as the rest of the service reports it.
type Entry struct {
	UserID    string
	UserRole  string
	Action    string
	Resource  string
	Allowed   bool
	Context   map[string]any
	IPAddress string
	UserAgent string
}

// Record is an audit row as returned by the API.
type Record struct {
	ID         string         `json:"id"`
	OccurredAt time.Time      `json:"occurredAt"`
	UserID     string         `json:"userId"`
	UserRole   string         `json:"userRole,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Allowed    bool           `json:"allowed"`
	Context    map[string]any `json:"context,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
}

func FromDataModel(l *auditDatamodel.Log) Record {
	r := Record{
		ID:         l.ID,
		OccurredAt: l.OccurredAt,
		UserID:     l.UserID,
		UserRole:   l.UserRole,
		Action:     l.Action,
		Resource:   l.Resource,
		Allowed:    l.Allowed,
		IPAddress:  l.IPAddress,
		UserAgent:  l.UserAgent,
	}
	if l.Context != "" {
		_ = json.Unmarshal([]byte(l.Context), &r.Context)
	}
	return r
}
