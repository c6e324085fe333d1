package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jaif/hal/internal/chains"
	"github.com/jaif/hal/internal/knowledge"
	"github.com/jaif/hal/internal/testutil"
)

const testToken = "test-token"

// emptyRetriever satisfies chains.Retriever without a database.
type emptyRetriever struct{}

func (emptyRetriever) Search(_ context.Context, _, _ string, _ int) ([]knowledge.Result, error) {
	return nil, nil
}

func (emptyRetriever) Add(_ context.Context, _ knowledge.Document) error {
	return nil
}

func newTestServer(t *testing.T, gen *testutil.MockGenerator) *httptest.Server {
	t.Helper()

	registry := chains.New(gen, emptyRetriever{}, nil)
	srv, err := NewServer(ServerConfig{
		Registry:  registry,
		Generator: gen,
		Auth:      StaticTokenAuthenticator{Token: testToken},
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func authedRequest(t *testing.T, method, url, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestNewServerValidation(t *testing.T) {
	gen := testutil.NewMockGenerator("ok")
	registry := chains.New(gen, emptyRetriever{}, nil)

	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{"missing registry", ServerConfig{Generator: gen, Auth: StaticTokenAuthenticator{Token: "x"}}},
		{"missing generator", ServerConfig{Registry: registry, Auth: StaticTokenAuthenticator{Token: "x"}}},
		{"missing authenticator", ServerConfig{Registry: registry, Generator: gen}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Error("NewServer() succeeded, want error")
			}
		})
	}
}

func TestHealthEndpointsSkipAuth(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockGenerator("ok"))

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestUnauthenticatedGets401EmptyBody(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockGenerator("ok"))

	resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if n != 0 {
		t.Errorf("401 body = %q, want empty", buf[:n])
	}
}

func TestChatSend(t *testing.T) {
	gen := testutil.NewMockGenerator("hello from the model")
	ts := newTestServer(t, gen)

	req := authedRequest(t, http.MethodPost, ts.URL+"/api/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Response != "hello from the model" {
		t.Errorf("response = %q, want the model output", body.Response)
	}
	if body.Chain != chains.RouteChat {
		t.Errorf("chain = %q, want default %q", body.Chain, chains.RouteChat)
	}
}

func TestChatSendValidation(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockGenerator("ok"))

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty messages", `{"messages":[]}`, "invalid_request"},
		{"not JSON", `not json`, "invalid_request"},
		{"unknown chain", `{"chain":"pirate","messages":[{"role":"user","content":"hi"}]}`, "unknown_chain"},
		{"empty content", `{"messages":[{"role":"user","content":""}]}`, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(t, http.MethodPost, ts.URL+"/api/v1/chat", tt.body)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var body errorBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.code {
				t.Errorf("error code = %q, want %q", body.Error, tt.code)
			}
		})
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockGenerator("ok"))

	req := authedRequest(t, http.MethodPost, ts.URL+"/api/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response is missing X-Request-ID")
	}
}
