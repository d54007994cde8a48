// Package controller is a client for the local controller's management
// REST API. Every request carries the X-ZT1-Auth header; responses are
// JSON objects that the client hands back as generic maps so the cache can
// mirror them without knowing their schema.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/ztnc/ztnc/pkg/util"
	"github.com/ztnc/ztnc/pkg/version"
)

// AuthHeader carries the controller's shared secret.
const AuthHeader = "X-ZT1-Auth"

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 512

// Status is the subset of /status the CLI needs.
type Status struct {
	Address string `json:"address"`
	Version string `json:"version,omitempty"`
	Online  bool   `json:"online"`
}

// Client talks to one controller endpoint. It performs no retries and sets
// no timeouts beyond those of the underlying transport.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL authenticating with token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    cleanhttp.DefaultClient(),
	}
}

// ReadToken reads the controller's auth token file. Surrounding whitespace
// is trimmed; an unreadable or empty file is an AuthError.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &util.AuthError{Path: path, Err: err}
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", &util.AuthError{Path: path, Err: fmt.Errorf("file is empty")}
	}
	return token, nil
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status returns this node's identity.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, &st); err != nil {
		return nil, err
	}
	if st.Address == "" {
		return nil, &util.RemoteError{Method: http.MethodGet, Path: "/status", Err: fmt.Errorf("response has no address")}
	}
	return &st, nil
}

// ListNetworks returns the identifiers of all networks on the controller.
func (c *Client) ListNetworks(ctx context.Context) ([]string, error) {
	return c.listIDs(ctx, "/controller/network")
}

// GetNetwork fetches one network object.
func (c *Client) GetNetwork(ctx context.Context, networkID string) (map[string]any, error) {
	return c.object(ctx, http.MethodGet, networkPath(networkID), nil)
}

// CreateNetwork posts body to a new network path. For an ID ending in
// "______" the controller picks the suffix.
func (c *Client) CreateNetwork(ctx context.Context, networkID string, body map[string]any) (map[string]any, error) {
	if body == nil {
		body = map[string]any{}
	}
	return c.object(ctx, http.MethodPost, networkPath(networkID), body)
}

// UpdateNetwork posts body to an existing network.
func (c *Client) UpdateNetwork(ctx context.Context, networkID string, body map[string]any) (map[string]any, error) {
	return c.object(ctx, http.MethodPost, networkPath(networkID), body)
}

// RenameNetwork sets the network's controller-side display name.
func (c *Client) RenameNetwork(ctx context.Context, networkID, name string) (map[string]any, error) {
	return c.UpdateNetwork(ctx, networkID, map[string]any{"name": name})
}

// DeleteNetwork deletes a network and returns the controller's response.
func (c *Client) DeleteNetwork(ctx context.Context, networkID string) (map[string]any, error) {
	return c.object(ctx, http.MethodDelete, networkPath(networkID), nil)
}

// ListMembers returns the identifiers of a network's members.
func (c *Client) ListMembers(ctx context.Context, networkID string) ([]string, error) {
	return c.listIDs(ctx, networkPath(networkID)+"/member")
}

// GetMember fetches one member object.
func (c *Client) GetMember(ctx context.Context, networkID, memberID string) (map[string]any, error) {
	return c.object(ctx, http.MethodGet, memberPath(networkID, memberID), nil)
}

// UpdateMember posts a full member object. The controller does not accept
// partial patches for members.
func (c *Client) UpdateMember(ctx context.Context, networkID, memberID string, body map[string]any) (map[string]any, error) {
	return c.object(ctx, http.MethodPost, memberPath(networkID, memberID), body)
}

// DeleteMember deletes a member and returns the controller's response.
func (c *Client) DeleteMember(ctx context.Context, networkID, memberID string) (map[string]any, error) {
	return c.object(ctx, http.MethodDelete, memberPath(networkID, memberID), nil)
}

func networkPath(networkID string) string {
	return "/controller/network/" + networkID
}

func memberPath(networkID, memberID string) string {
	return networkPath(networkID) + "/member/" + memberID
}

func (c *Client) object(ctx context.Context, method, path string, body any) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// listIDs decodes a collection listing. Networks come back as an array of
// IDs; members as an object of ID to revision. Object keys are sorted.
func (c *Client) listIDs(ctx context.Context, path string) ([]string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids, nil
	}
	var byID map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, &util.RemoteError{Method: http.MethodGet, Path: path, Err: fmt.Errorf("unexpected listing: %w", err)}
	}
	ids = make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &util.RemoteError{Method: method, Path: path, Err: fmt.Errorf("encoding request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &util.RemoteError{Method: method, Path: path, Err: err}
	}
	req.Header.Set(AuthHeader, c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	util.WithField("path", path).Debugf("%s %s", method, c.baseURL+path)
	resp, err := c.http.Do(req)
	if err != nil {
		return &util.RemoteError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &util.RemoteError{Method: method, Path: path, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &util.RemoteError{Method: method, Path: path, Status: resp.StatusCode, Body: snippet(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &util.RemoteError{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err), Body: snippet(data)}
	}
	return nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
