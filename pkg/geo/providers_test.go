package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIPAPIProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("User-Agent = %q, want %q", got, userAgent)
		}
		w.Write([]byte(`{
			"status": "success",
			"country": "Brazil", "countryCode": "BR",
			"regionName": "Sao Paulo", "city": "Sao Paulo",
			"lat": -23.55, "lon": -46.63,
			"timezone": "America/Sao_Paulo",
			"isp": "Vivo", "org": "Telefonica", "as": "AS26599"
		}`))
	}))
	defer srv.Close()

	p := &ipAPIProvider{client: srv.Client(), baseURL: srv.URL}
	info, err := p.Lookup(context.Background(), "203.0.113.9")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if info.Country != "Brazil" || info.City != "Sao Paulo" || info.ASNumber != "AS26599" {
		t.Errorf("Lookup() = %+v, unexpected mapping", info)
	}
}

func TestIPAPIProvider_StatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "fail", "message": "private range"}`))
	}))
	defer srv.Close()

	p := &ipAPIProvider{client: srv.Client(), baseURL: srv.URL}
	if _, err := p.Lookup(context.Background(), "203.0.113.9"); err == nil {
		t.Error("Lookup() error = nil, want failure for status=fail")
	}
}

func TestIpapiCoProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"country_name": "Portugal", "country_code": "PT",
			"region": "Lisbon", "city": "Lisbon",
			"latitude": 38.72, "longitude": -9.13,
			"timezone": "Europe/Lisbon", "org": "MEO", "asn": "AS3243"
		}`))
	}))
	defer srv.Close()

	p := &ipapiCoProvider{client: srv.Client(), baseURL: srv.URL}
	info, err := p.Lookup(context.Background(), "203.0.113.9")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if info.Country != "Portugal" || info.ISP != "MEO" || info.ASNumber != "AS3243" {
		t.Errorf("Lookup() = %+v, unexpected mapping", info)
	}
}

func TestIpinfoProvider_LocParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"city": "Berlin", "region": "Berlin", "country": "DE",
			"loc": "52.5200,13.4050", "org": "AS3320 Deutsche Telekom",
			"timezone": "Europe/Berlin"
		}`))
	}))
	defer srv.Close()

	p := &ipinfoProvider{client: srv.Client(), baseURL: srv.URL}
	info, err := p.Lookup(context.Background(), "203.0.113.9")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if info.Latitude != 52.52 || info.Longitude != 13.405 {
		t.Errorf("loc parsing = (%v, %v), want (52.52, 13.405)", info.Latitude, info.Longitude)
	}
	if info.CountryCode != "DE" {
		t.Errorf("CountryCode = %q, want DE", info.CountryCode)
	}
}

func TestProviders_SoftFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status": "succ`))
			},
		},
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "missing required fields",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status": "success", "country": "Brazil"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := &ipAPIProvider{client: srv.Client(), baseURL: srv.URL}
			if _, err := p.Lookup(context.Background(), "203.0.113.9"); err == nil {
				t.Error("Lookup() error = nil, want soft failure")
			}
		})
	}
}

// End-to-end fallback through real HTTP providers: the first returns
// malformed JSON, the second succeeds, and the cache receives the second
// provider's data.
func TestResolver_HTTPProviderFallback(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`garbage`))
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","country":"Chile","countryCode":"CL","regionName":"RM","city":"Santiago","lat":-33.45,"lon":-70.66,"timezone":"America/Santiago","isp":"GTD","org":"GTD","as":"AS14117"}`))
	}))
	defer good.Close()

	store := newTestStore(t)
	providers := []Provider{
		&ipAPIProvider{client: bad.Client(), baseURL: bad.URL},
		&ipAPIProvider{client: good.Client(), baseURL: good.URL},
	}
	r := NewResolver(store, providers, nil, ResolverConfig{}, nil, nil)

	info := r.Resolve(context.Background(), "198.51.100.20")
	if info.City != "Santiago" {
		t.Fatalf("Resolve() city = %q, want Santiago", info.City)
	}

	entry, found, err := store.Get(context.Background(), "198.51.100.20")
	if err != nil || !found {
		t.Fatalf("cache entry missing: found=%v err=%v", found, err)
	}
	if entry.Info.Country != "Chile" {
		t.Errorf("cached country = %q, want Chile", entry.Info.Country)
	}
}
