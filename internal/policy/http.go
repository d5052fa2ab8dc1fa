package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTenant = "default"

type HTTPConfig struct {
	PDPURL      string
	APIURL      string
	APIKey      string
	Project     string
	Environment string
	Timeout     time.Duration
}

// HTTPClient talks to a remote decision point: the PDP answers checks, the
// management API stores users, roles and attributes.
type HTTPClient struct {
	pdpURL     string
	apiURL     string
	apiKey     string
	project    string
	env        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	project := cfg.Project
	if project == "" {
		project = "default"
	}
	env := cfg.Environment
	if env == "" {
		env = "production"
	}

	return &HTTPClient{
		pdpURL:     strings.TrimRight(cfg.PDPURL, "/"),
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		project:    project,
		env:        env,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("decision point returned status %d: %s", e.status, e.body)
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (c *HTTPClient) Check(ctx context.Context, userID string, action Action, resource ResourceType) (bool, error) {
	payload := map[string]any{
		"user":   map[string]any{"key": userID},
		"action": string(action),
		"resource": map[string]any{
			"type":   string(resource),
			"tenant": defaultTenant,
		},
	}

	var resp struct {
		Allow bool `json:"allow"`
	}
	if err := c.do(ctx, http.MethodPost, c.pdpURL+"/allowed", payload, &resp); err != nil {
		c.logger.Error("policy check failed",
			"user_id", userID,
			"action", action,
			"resource", resource,
			"error", err)
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.logger.Debug("policy decision",
		"user_id", userID,
		"action", action,
		"resource", resource,
		"allowed", resp.Allow)

	return resp.Allow, nil
}

type remoteUser struct {
	Key        string         `json:"key"`
	Email      string         `json:"email,omitempty"`
	FirstName  string         `json:"first_name,omitempty"`
	LastName   string         `json:"last_name,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Roles      []struct {
		Role   string `json:"role"`
		Tenant string `json:"tenant"`
	} `json:"roles,omitempty"`
}

func (c *HTTPClient) GetUserAttributes(ctx context.Context, userID string) (Attributes, error) {
	var user remoteUser
	if err := c.do(ctx, http.MethodGet, c.factsURL("users", url.PathEscape(userID)), nil, &user); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return Attributes{}, ErrUnknownUser
		}
		return Attributes{}, fmt.Errorf("failed to get user attributes: %w", err)
	}

	attrs := attributesFromMap(user.Attributes)
	if attrs.Role == "" && len(user.Roles) > 0 {
		attrs.Role = Role(user.Roles[0].Role)
	}
	return attrs, nil
}

func (c *HTTPClient) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	var assignments []struct {
		Role string `json:"role"`
	}
	endpoint := c.factsURL("role_assignments") + "?user=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &assignments); err != nil {
		return nil, fmt.Errorf("failed to list role assignments: %w", err)
	}

	seen := make(map[string]struct{})
	permissions := []string{}
	for _, a := range assignments {
		var role struct {
			Permissions []string `json:"permissions"`
		}
		if err := c.do(ctx, http.MethodGet, c.schemaURL("roles", url.PathEscape(a.Role)), nil, &role); err != nil {
			return nil, fmt.Errorf("failed to get role %s: %w", a.Role, err)
		}
		for _, p := range role.Permissions {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			permissions = append(permissions, p)
		}
	}

	return permissions, nil
}

func (c *HTTPClient) AssignRole(ctx context.Context, userID string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	payload := map[string]any{
		"user":   userID,
		"role":   string(role),
		"tenant": defaultTenant,
	}
	err := c.do(ctx, http.MethodPost, c.factsURL("role_assignments"), payload, nil)
	if err != nil && !isStatus(err, http.StatusConflict) {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	c.logger.Info("role assigned", "user_id", userID, "role", role)
	return nil
}

func (c *HTTPClient) SyncUser(ctx context.Context, profile UserProfile) error {
	payload := remoteUser{
		Key:        profile.ID,
		Email:      profile.Email,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		Attributes: profile.Attributes.toMap(),
	}
	if err := c.do(ctx, http.MethodPut, c.factsURL("users", url.PathEscape(profile.ID)), payload, nil); err != nil {
		return fmt.Errorf("failed to sync user: %w", err)
	}

	role := profile.Role
	if role == "" {
		role = DefaultRole
	}
	return c.AssignRole(ctx, profile.ID, role)
}

// UpsertResource creates the resource type, or updates it when it already exists.
func (c *HTTPClient) UpsertResource(ctx context.Context, def ResourceDefinition) error {
	actions := make(map[string]any, len(def.Actions))
	for _, a := range def.Actions {
		actions[string(a)] = map[string]string{"name": strings.ToUpper(string(a[:1])) + string(a[1:])}
	}
	payload := map[string]any{
		"key":     def.Key,
		"name":    def.Name,
		"actions": actions,
	}

	err := c.do(ctx, http.MethodPost, c.schemaURL("resources"), payload, nil)
	if isStatus(err, http.StatusConflict) {
		delete(payload, "key")
		err = c.do(ctx, http.MethodPatch, c.schemaURL("resources", url.PathEscape(def.Key)), payload, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert resource %s: %w", def.Key, err)
	}

	if def.Parent != "" {
		relation := map[string]any{
			"key":              "parent",
			"name":             "Parent",
			"subject_resource": string(def.Parent),
		}
		err := c.do(ctx, http.MethodPost, c.schemaURL("resources", url.PathEscape(def.Key), "relations"), relation, nil)
		if err != nil && !isStatus(err, http.StatusConflict) {
			return fmt.Errorf("failed to create parent relation for %s: %w", def.Key, err)
		}
	}
	return nil
}

// UpsertRole creates the role, or replaces its permissions when it already exists.
func (c *HTTPClient) UpsertRole(ctx context.Context, def RoleDefinition) error {
	payload := map[string]any{
		"key":         string(def.Key),
		"name":        def.Name,
		"description": def.Description,
		"permissions": def.Permissions,
	}

	err := c.do(ctx, http.MethodPost, c.schemaURL("roles"), payload, nil)
	if isStatus(err, http.StatusConflict) {
		delete(payload, "key")
		err = c.do(ctx, http.MethodPatch, c.schemaURL("roles", url.PathEscape(string(def.Key))), payload, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert role %s: %w", def.Key, err)
	}
	return nil
}

func (c *HTTPClient) factsURL(parts ...string) string {
	return c.apiURL + "/v2/facts/" + c.project + "/" + c.env + "/" + strings.Join(parts, "/")
}

func (c *HTTPClient) schemaURL(parts ...string) string {
	return c.apiURL + "/v2/schema/" + c.project + "/" + c.env + "/" + strings.Join(parts, "/")
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
