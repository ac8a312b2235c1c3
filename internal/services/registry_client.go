// Package services holds clients for the external collaborators of the
// bundle core, chiefly the workflow runtime's registry endpoints.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"flowport/backend/internal/validate"
)

// HTTPRegistryClient reads the workflow runtime's registries over HTTP. The
// runtime owns the registries; this client only snapshots them for the
// dependency validator.
type HTTPRegistryClient struct {
	baseURL string
}

// NewHTTPRegistryClient creates a new HTTPRegistryClient.
func NewHTTPRegistryClient(baseURL string) *HTTPRegistryClient {
	return &HTTPRegistryClient{baseURL: baseURL}
}

// Snapshot fetches all three registries and returns them as one immutable
// point-in-time view.
func (c *HTTPRegistryClient) Snapshot(ctx context.Context) (validate.RegistrySnapshot, error) {
	actions, err := c.names(ctx, "actions")
	if err != nil {
		return validate.RegistrySnapshot{}, err
	}
	nodeTypes, err := c.names(ctx, "node-types")
	if err != nil {
		return validate.RegistrySnapshot{}, err
	}
	schemaRefs, err := c.names(ctx, "schemas")
	if err != nil {
		return validate.RegistrySnapshot{}, err
	}
	return validate.NewRegistrySnapshot(actions, nodeTypes, schemaRefs), nil
}

func (c *HTTPRegistryClient) names(ctx context.Context, kind string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/registry/"+kind, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s registry: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s registry: status code %d", kind, resp.StatusCode)
	}

	var body struct {
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode %s registry response: %w", kind, err)
	}
	return body.Names, nil
}
