package edai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockServer creates an httptest server that mimics the EDAI API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    serverURL,
		AdminToken: "admin-token",
		Actor:      "sdk-test",
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty BaseURL")
	}
}

func TestAdjudicate(t *testing.T) {
	caseID := uuid.New()
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/cases/{id}/verdict": func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("id") != caseID.String() {
				t.Errorf("unexpected case id %q", r.PathValue("id"))
			}
			if got := r.Header.Get("X-EDAI-Actor"); got != "sdk-test" {
				t.Errorf("actor header = %q", got)
			}
			var req AdjudicateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if req.JudgeModel != "judge/x" {
				t.Errorf("judge model = %q", req.JudgeModel)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"data": AdjudicateResponse{
					Verdict:     &Verdict{CaseID: caseID, Content: "In favor of Claimant", JudgeModel: "judge/x"},
					Result:      VerdictResult{Content: "In favor of Claimant", PassedBiasCheck: true, Outcome: "ok"},
					Status:      StatusResolved,
					Disposition: "resolved",
				},
			})
		},
	})

	resp, err := newTestClient(t, srv.URL).Adjudicate(context.Background(), caseID, &AdjudicateRequest{JudgeModel: "judge/x"})
	if err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}
	if resp.Status != StatusResolved {
		t.Errorf("status = %q, want %q", resp.Status, StatusResolved)
	}
	if resp.Verdict == nil || resp.Verdict.Content != "In favor of Claimant" {
		t.Errorf("unexpected verdict %+v", resp.Verdict)
	}
}

func TestAdjudicateUnavailableCarriesDetails(t *testing.T) {
	caseID := uuid.New()
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/cases/{id}/verdict": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error": map[string]any{
					"code":    "SERVICE_UNAVAILABLE",
					"message": "AI Service is currently unavailable. Please try again later.",
					"details": AdjudicateResponse{
						Result: VerdictResult{Content: "Verdict: Service Unavailable", Failed: true, Outcome: "unavailable"},
						Status: StatusOpen,
					},
				},
			})
		},
	})

	_, err := newTestClient(t, srv.URL).Adjudicate(context.Background(), caseID, nil)
	if !IsUnavailable(err) {
		t.Fatalf("expected 503 error, got %v", err)
	}
	apiErr := err.(*Error)
	if apiErr.Details == nil || !apiErr.Details.Result.Failed {
		t.Fatalf("expected failed result in details, got %+v", apiErr.Details)
	}
	if apiErr.Details.Status != StatusOpen {
		t.Errorf("status = %q, want OPEN", apiErr.Details.Status)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusNotFound, IsNotFound},
		{http.StatusUnauthorized, IsUnauthorized},
		{http.StatusConflict, IsConflict},
		{http.StatusTooManyRequests, IsRateLimited},
	}
	for _, tt := range tests {
		srv := mockServer(t, map[string]http.HandlerFunc{
			"GET /v1/cases/{id}": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{
					"error": map[string]any{"code": "X", "message": "nope"},
				})
			},
		})
		_, err := newTestClient(t, srv.URL).GetCase(context.Background(), uuid.New())
		if !tt.check(err) {
			t.Errorf("status %d: helper returned false for %v", tt.status, err)
		}
	}
}

func TestNonEnvelopeError(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
	})
	_, err := newTestClient(t, srv.URL).Health(context.Background())
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Code != "Bad Gateway" {
		t.Errorf("code = %q", apiErr.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	var stored ProviderConfig
	srv := mockServer(t, map[string]http.HandlerFunc{
		"PUT /v1/admin/settings": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer admin-token" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"code": "UNAUTHORIZED", "message": "bad token"},
				})
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&stored)
			out := stored
			out.APIKey = "sk-...1234"
			writeJSON(w, http.StatusOK, map[string]any{"data": out})
		},
	})

	got, err := newTestClient(t, srv.URL).PutSettings(context.Background(), ProviderConfig{Provider: "openrouter", APIKey: "sk-or-abcd1234"})
	if err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
	if stored.APIKey != "sk-or-abcd1234" {
		t.Errorf("server received key %q", stored.APIKey)
	}
	if got.APIKey == "sk-or-abcd1234" {
		t.Error("expected redacted key in response")
	}
}

func TestListCasesLimit(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/cases": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": []Case{{Title: "a"}, {Title: "b"}}})
		},
	})
	cases, err := newTestClient(t, srv.URL).ListCases(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListCases: %v", err)
	}
	if len(cases) != 2 {
		t.Errorf("got %d cases", len(cases))
	}
}
