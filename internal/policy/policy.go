// Package policy talks to the policy decision point that owns roles, user
// attributes and permission checks, and derives the per-request filters that
// narrow what the assistant may discuss.
package policy

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
)

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionShare  Action = "share"
	ActionSearch Action = "search"
	ActionMask   Action = "mask"
)

type ResourceType string

const (
	ResourceMedicalRecord ResourceType = "medicalRecord"
	ResourcePrescription  ResourceType = "prescription"
	ResourceAppointment   ResourceType = "appointment"
	ResourceDiagnosis     ResourceType = "diagnosis"
	ResourceInsurance     ResourceType = "insurance"
	ResourceChat          ResourceType = "chat"
	ResourceRAGQuery      ResourceType = "ragQuery"
	ResourceAIResponse    ResourceType = "aiResponse"
	ResourceAuditLog      ResourceType = "auditLog"
	ResourceNotification  ResourceType = "notification"
	ResourcePrompt        ResourceType = "prompt"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RolePatient    Role = "patient"
	RoleResearcher Role = "researcher"

	DefaultRole = RolePatient
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient, RoleResearcher:
		return true
	}
	return false
}

// Attributes are the user facts the decision point keeps. Known fields are
// typed; anything else the decision point returns is kept in Extra.
type Attributes struct {
	Department     string            `json:"department,omitempty"`
	Clearance      *int              `json:"clearance,omitempty"`
	Specialization string            `json:"specialization,omitempty"`
	Role           Role              `json:"role,omitempty"`
	Blocked        bool              `json:"isBlocked,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// Clearance returns a pointer for building Attributes literals.
func Clearance(level int) *int {
	return &level
}

// UserProfile is what gets pushed to the decision point when a user is created or changes.
type UserProfile struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	Role       Role
	Attributes Attributes
}

// Client is the decision point as seen by the rest of the service.
type Client interface {
	Check(ctx context.Context, userID string, action Action, resource ResourceType) (bool, error)
	GetUserAttributes(ctx context.Context, userID string) (Attributes, error)
	GetUserPermissions(ctx context.Context, userID string) ([]string, error)
	AssignRole(ctx context.Context, userID string, role Role) error
	SyncUser(ctx context.Context, profile UserProfile) error
}

var (
	ErrUnknownUser = errors.New("policy: unknown user")
	ErrUnavailable = errors.New("policy: decision point unavailable")
)

// Permission formats the "resource:action" key used in permission lists.
func Permission(resource ResourceType, action Action) string {
	return string(resource) + ":" + string(action)
}

func HasPermission(permissions []string, resource ResourceType, action Action) bool {
	want := Permission(resource, action)
	for _, p := range permissions {
		if p == want {
			return true
		}
	}
	return false
}

// ActionForMethod maps an HTTP verb onto the action it performs.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead:
		return ActionView
	case http.MethodPost:
		return ActionCreate
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionView
	}
}

// attributesFromMap converts a loosely typed attribute bag into Attributes.
func attributesFromMap(raw map[string]any) Attributes {
	var attrs Attributes
	for k, v := range raw {
		switch k {
		case "department":
			attrs.Department = stringValue(v)
		case "specialization":
			attrs.Specialization = stringValue(v)
		case "role":
			attrs.Role = Role(stringValue(v))
		case "clearance":
			if n, ok := intValue(v); ok {
				attrs.Clearance = &n
			}
		case "isBlocked", "is_blocked":
			switch b := v.(type) {
			case bool:
				attrs.Blocked = b
			case string:
				attrs.Blocked = strings.EqualFold(b, "true")
			}
		default:
			if s := stringValue(v); s != "" {
				if attrs.Extra == nil {
					attrs.Extra = make(map[string]string)
				}
				attrs.Extra[k] = s
			}
		}
	}
	return attrs
}

// toMap is the inverse of attributesFromMap, used when pushing attributes.
func (a Attributes) toMap() map[string]any {
	out := make(map[string]any, len(a.Extra)+5)
	for k, v := range a.Extra {
		out[k] = v
	}
	if a.Department != "" {
		out["department"] = a.Department
	}
	if a.Specialization != "" {
		out["specialization"] = a.Specialization
	}
	if a.Role != "" {
		out["role"] = string(a.Role)
	}
	if a.Clearance != nil {
		out["clearance"] = *a.Clearance
	}
	out["isBlocked"] = a.Blocked
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// intValue reads a whole number from a decoded attribute. Values beyond the
// int32 range are clamped to it so a huge level never wraps negative.
func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, t))), true
	case int:
		return t, true
	case int64:
		return int(max(math.MinInt32, min(math.MaxInt32, t))), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}
