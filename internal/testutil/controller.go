// Package testutil provides test helpers, chiefly an in-process fake of the
// controller's management API.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// FakeToken is the auth token the fake controller accepts by default.
const FakeToken = "fake-auth-token"

// FakeNodeID is the node address the fake controller reports on /status.
const FakeNodeID = "8056c2e21c"

// Request is one request received by the fake controller.
type Request struct {
	Method string
	Path   string
	Body   map[string]any
}

// FakeController emulates the subset of the controller API the CLI uses.
// Objects are stored as generic JSON maps; POST merges the body into the
// stored object like the real controller does.
type FakeController struct {
	Server *httptest.Server
	Token  string
	NodeID string

	mu         sync.Mutex
	networks   map[string]map[string]any
	members    map[string]map[string]map[string]any
	requests   []Request
	failures   map[string]int
	nextSuffix int
}

// NewFakeController starts a fake controller that is shut down when the
// test finishes.
func NewFakeController(t testing.TB) *FakeController {
	t.Helper()

	f := &FakeController{
		Token:    FakeToken,
		NodeID:   FakeNodeID,
		networks: make(map[string]map[string]any),
		members:  make(map[string]map[string]map[string]any),
		failures: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", f.handleStatus)
	mux.HandleFunc("GET /controller/network", f.handleListNetworks)
	mux.HandleFunc("GET /controller/network/{nwid}", f.handleGetNetwork)
	mux.HandleFunc("POST /controller/network/{nwid}", f.handlePostNetwork)
	mux.HandleFunc("DELETE /controller/network/{nwid}", f.handleDeleteNetwork)
	mux.HandleFunc("GET /controller/network/{nwid}/member", f.handleListMembers)
	mux.HandleFunc("GET /controller/network/{nwid}/member/{id}", f.handleGetMember)
	mux.HandleFunc("POST /controller/network/{nwid}/member/{id}", f.handlePostMember)
	mux.HandleFunc("DELETE /controller/network/{nwid}/member/{id}", f.handleDeleteMember)

	f.Server = httptest.NewServer(f.middleware(mux))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the fake controller's base URL.
func (f *FakeController) URL() string {
	return f.Server.URL
}

// AddNetwork seeds a network object.
func (f *FakeController) AddNetwork(id string, attrs map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj := copyJSON(attrs)
	obj["id"] = id
	obj["nwid"] = id
	f.networks[id] = obj
}

// AddMember seeds a member object, creating the network if needed.
func (f *FakeController) AddMember(networkID, memberID string, attrs map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.networks[networkID]; !ok {
		f.networks[networkID] = map[string]any{"id": networkID, "nwid": networkID}
	}
	f.putMember(networkID, memberID, attrs)
}

// Network returns a copy of the stored network object.
func (f *FakeController) Network(id string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.networks[id]
	return copyJSON(obj), ok
}

// Member returns a copy of the stored member object.
func (f *FakeController) Member(networkID, memberID string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.members[networkID][memberID]
	return copyJSON(obj), ok
}

// Requests returns every request received so far, in order.
func (f *FakeController) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// RequestsTo returns the requests matching method and path.
func (f *FakeController) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// FailNext makes the next request to "METHOD /path" answer with status.
func (f *FakeController) FailNext(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = status
}

func (f *FakeController) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				if err := json.Unmarshal(data, &req.Body); err != nil {
					http.Error(w, `{"error":"malformed JSON"}`, http.StatusBadRequest)
					return
				}
			}
			r.Body = io.NopCloser(strings.NewReader(string(data)))
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		status, fail := f.failures[r.Method+" "+r.URL.Path]
		delete(f.failures, r.Method+" "+r.URL.Path)
		f.mu.Unlock()

		if r.Header.Get("X-ZT1-Auth") != f.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		if fail {
			writeJSON(w, status, map[string]any{"error": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeController) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"address": f.NodeID,
		"online":  true,
		"version": "1.14.2",
	})
}

func (f *FakeController) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	ids := make([]string, 0, len(f.networks))
	for id := range f.networks {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, ids)
}

func (f *FakeController) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	obj, ok := f.Network(r.PathValue("nwid"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (f *FakeController) handlePostNetwork(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	id := r.PathValue("nwid")
	f.mu.Lock()
	if strings.HasSuffix(id, "______") && len(id) == 16 {
		f.nextSuffix++
		id = id[:10] + fmt.Sprintf("%06x", f.nextSuffix)
	}
	obj, ok := f.networks[id]
	if !ok {
		obj = map[string]any{"id": id, "nwid": id, "name": "", "private": true}
		f.networks[id] = obj
	}
	for k, v := range body {
		obj[k] = v
	}
	out := copyJSON(obj)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (f *FakeController) handleDeleteNetwork(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("nwid")
	f.mu.Lock()
	obj, ok := f.networks[id]
	delete(f.networks, id)
	delete(f.members, id)
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, copyJSON(obj))
}

func (f *FakeController) handleListMembers(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("nwid")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.networks[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	revisions := make(map[string]any, len(f.members[id]))
	for mid, obj := range f.members[id] {
		revisions[mid] = obj["revision"]
	}
	writeJSON(w, http.StatusOK, revisions)
}

func (f *FakeController) handleGetMember(w http.ResponseWriter, r *http.Request) {
	obj, ok := f.Member(r.PathValue("nwid"), r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (f *FakeController) handlePostMember(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	nwid, id := r.PathValue("nwid"), r.PathValue("id")
	f.mu.Lock()
	if _, ok := f.networks[nwid]; !ok {
		f.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	out := f.putMember(nwid, id, body)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (f *FakeController) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	nwid, id := r.PathValue("nwid"), r.PathValue("id")
	f.mu.Lock()
	obj, ok := f.members[nwid][id]
	delete(f.members[nwid], id)
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, copyJSON(obj))
}

// putMember merges attrs into the member object and bumps its revision.
// Callers hold f.mu.
func (f *FakeController) putMember(networkID, memberID string, attrs map[string]any) map[string]any {
	if f.members[networkID] == nil {
		f.members[networkID] = make(map[string]map[string]any)
	}
	obj, ok := f.members[networkID][memberID]
	if !ok {
		obj = map[string]any{
			"id":            memberID,
			"address":       memberID,
			"nwid":          networkID,
			"authorized":    false,
			"ipAssignments": []any{},
			"revision":      float64(0),
		}
		f.members[networkID][memberID] = obj
	}
	for k, v := range copyJSON(attrs) {
		obj[k] = v
	}
	rev, _ := obj["revision"].(float64)
	obj["revision"] = rev + 1
	return copyJSON(obj)
}

func decodeBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// copyJSON deep-copies a JSON object through an encode/decode cycle, which
// also normalizes numbers to float64 as a real client would see them.
func copyJSON(obj map[string]any) map[string]any {
	out := map[string]any{}
	if obj == nil {
		return out
	}
	data, err := json.Marshal(obj)
	if err != nil {
		panic(fmt.Sprintf("testutil: copying JSON object: %v", err))
	}
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("testutil: copying JSON object: %v", err))
	}
	return out
}
