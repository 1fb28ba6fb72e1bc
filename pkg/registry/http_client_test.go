package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/domains/x.example" {
			t.Errorf("path = %q, want /v1/domains/x.example", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "d-123",
			"hostname": "x.example",
			"origin_url": "http://origin.test",
			"status": "active",
			"analytics_enabled": true,
			"owner_status": "active",
			"plan_name": "Pro"
		}`))
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, APIToken: "secret"}, nil)
	if err != nil {
		t.Fatalf("NewHTTPClient() error: %v", err)
	}

	record, err := c.Lookup(context.Background(), "X.Example.")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if record.OriginURL != "http://origin.test" || record.Status != DomainActive {
		t.Errorf("Lookup() = %+v, unexpected record", record)
	}
}

func TestHTTPClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Lookup(context.Background(), "missing.example")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestHTTPClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Lookup(context.Background(), "x.example")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup() error = %v, want non-NotFound failure", err)
	}
}

func TestDomainRecord_Servable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		record DomainRecord
		want   bool
	}{
		{
			name:   "active and unexpired",
			record: DomainRecord{Status: DomainActive, OwnerStatus: AccountActive},
			want:   true,
		},
		{
			name:   "active with future expiry",
			record: DomainRecord{Status: DomainActive, OwnerStatus: AccountActive, ExpiresAt: &future},
			want:   true,
		},
		{
			name:   "expired",
			record: DomainRecord{Status: DomainActive, OwnerStatus: AccountActive, ExpiresAt: &past},
			want:   false,
		},
		{
			name:   "inactive",
			record: DomainRecord{Status: DomainInactive, OwnerStatus: AccountActive},
			want:   false,
		},
		{
			name:   "suspended owner",
			record: DomainRecord{Status: DomainActive, OwnerStatus: AccountSuspended},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Servable(now); got != tt.want {
				t.Errorf("Servable() = %v, want %v", got, tt.want)
			}
		})
	}
}
