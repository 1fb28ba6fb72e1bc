package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// userAgent identifies the resolver to provider APIs.
const userAgent = "StreamCDN-Edge/1.0"

// maxProviderBody bounds how much of a provider response is read.
const maxProviderBody = 1 << 20

// Provider is a single external geolocation source. Lookup returns an
// error for network failures, non-2xx responses and malformed payloads
// alike; the resolver treats all of them as soft failures and advances
// the fallback chain.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (Info, error)
}

// DefaultProviders returns the production provider chain in priority
// order. client supplies timeouts and connection pooling.
func DefaultProviders(client *http.Client) []Provider {
	return []Provider{
		&ipAPIProvider{client: client},
		&ipapiCoProvider{client: client},
		&ipinfoProvider{client: client},
	}
}

// fetchJSON performs the shared provider request plumbing: issue a GET
// with the resolver User-Agent, require a 2xx, decode JSON into dst.
func fetchJSON(ctx context.Context, client *http.Client, name, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", name, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxProviderBody))
		return fmt.Errorf("%s: unexpected status %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", name, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s: malformed response: %w", name, err)
	}
	return nil
}

// wellFormed enforces the minimum contract for a provider success:
// country and city must both be present.
func wellFormed(name string, info Info) (Info, error) {
	if info.Country == "" || info.City == "" {
		return Info{}, fmt.Errorf("%s: incomplete response (country=%q city=%q)",
			name, info.Country, info.City)
	}
	return info, nil
}

// ipAPIProvider queries ip-api.com, the most complete of the free
// sources. It signals failure in-band via a status field.
type ipAPIProvider struct {
	client  *http.Client
	baseURL string // test override
}

func (p *ipAPIProvider) Name() string { return "ip-api.com" }

func (p *ipAPIProvider) Lookup(ctx context.Context, ip string) (Info, error) {
	base := p.baseURL
	if base == "" {
		base = "http://ip-api.com"
	}
	url := fmt.Sprintf("%s/json/%s?fields=status,message,country,countryCode,region,regionName,city,lat,lon,timezone,isp,org,as,query", base, ip)

	var payload struct {
		Status      string  `json:"status"`
		Message     string  `json:"message"`
		Country     string  `json:"country"`
		CountryCode string  `json:"countryCode"`
		Region      string  `json:"region"`
		RegionName  string  `json:"regionName"`
		City        string  `json:"city"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
		Timezone    string  `json:"timezone"`
		ISP         string  `json:"isp"`
		Org         string  `json:"org"`
		AS          string  `json:"as"`
	}
	if err := fetchJSON(ctx, p.client, p.Name(), url, &payload); err != nil {
		return Info{}, err
	}
	if payload.Status != "success" {
		return Info{}, fmt.Errorf("%s: lookup failed: %s", p.Name(), payload.Message)
	}

	region := payload.RegionName
	if region == "" {
		region = payload.Region
	}
	return wellFormed(p.Name(), Info{
		Country:     payload.Country,
		CountryCode: payload.CountryCode,
		Region:      region,
		City:        payload.City,
		Latitude:    payload.Lat,
		Longitude:   payload.Lon,
		Timezone:    payload.Timezone,
		ISP:         payload.ISP,
		Org:         payload.Org,
		ASNumber:    payload.AS,
	})
}

// ipapiCoProvider queries ipapi.co. It signals failure via an error
// field in the JSON body.
type ipapiCoProvider struct {
	client  *http.Client
	baseURL string
}

func (p *ipapiCoProvider) Name() string { return "ipapi.co" }

func (p *ipapiCoProvider) Lookup(ctx context.Context, ip string) (Info, error) {
	base := p.baseURL
	if base == "" {
		base = "https://ipapi.co"
	}
	url := fmt.Sprintf("%s/%s/json/", base, ip)

	var payload struct {
		Error       bool    `json:"error"`
		Reason      string  `json:"reason"`
		CountryName string  `json:"country_name"`
		CountryCode string  `json:"country_code"`
		Region      string  `json:"region"`
		City        string  `json:"city"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Timezone    string  `json:"timezone"`
		Org         string  `json:"org"`
		ASN         string  `json:"asn"`
	}
	if err := fetchJSON(ctx, p.client, p.Name(), url, &payload); err != nil {
		return Info{}, err
	}
	if payload.Error {
		return Info{}, fmt.Errorf("%s: lookup failed: %s", p.Name(), payload.Reason)
	}

	return wellFormed(p.Name(), Info{
		Country:     payload.CountryName,
		CountryCode: payload.CountryCode,
		Region:      payload.Region,
		City:        payload.City,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
		Timezone:    payload.Timezone,
		ISP:         payload.Org,
		Org:         payload.Org,
		ASNumber:    payload.ASN,
	})
}

// ipinfoProvider queries ipinfo.io. The free tier returns only a country
// code and a combined "lat,lon" loc field, so the country name falls
// back to the code.
type ipinfoProvider struct {
	client  *http.Client
	baseURL string
}

func (p *ipinfoProvider) Name() string { return "ipinfo.io" }

func (p *ipinfoProvider) Lookup(ctx context.Context, ip string) (Info, error) {
	base := p.baseURL
	if base == "" {
		base = "https://ipinfo.io"
	}
	url := fmt.Sprintf("%s/%s/json", base, ip)

	var payload struct {
		City     string `json:"city"`
		Region   string `json:"region"`
		Country  string `json:"country"`
		Loc      string `json:"loc"`
		Org      string `json:"org"`
		Timezone string `json:"timezone"`
	}
	if err := fetchJSON(ctx, p.client, p.Name(), url, &payload); err != nil {
		return Info{}, err
	}

	var lat, lon float64
	if parts := strings.SplitN(payload.Loc, ",", 2); len(parts) == 2 {
		lat, _ = strconv.ParseFloat(parts[0], 64)
		lon, _ = strconv.ParseFloat(parts[1], 64)
	}
	return wellFormed(p.Name(), Info{
		Country:     payload.Country,
		CountryCode: payload.Country,
		Region:      payload.Region,
		City:        payload.City,
		Latitude:    lat,
		Longitude:   lon,
		Timezone:    payload.Timezone,
		ISP:         payload.Org,
		Org:         payload.Org,
		ASNumber:    payload.Org,
	})
}
