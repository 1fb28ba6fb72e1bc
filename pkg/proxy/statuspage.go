package proxy

import (
	"html/template"
	"net/http"
	"time"

	"streamcdn/edge/pkg/classify"
	"streamcdn/edge/pkg/geo"
	"streamcdn/edge/pkg/registry"
)

// statusPageTemplate is the operator-branded page served to browsers,
// bots and any domain that cannot be forwarded. It never discloses the
// origin URL.
var statusPageTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:-apple-system,Segoe UI,Roboto,sans-serif;background:#0f1420;color:#e8ecf4;margin:0;display:flex;min-height:100vh;align-items:center;justify-content:center}
.card{background:#1a2232;border-radius:12px;padding:40px 48px;max-width:520px;box-shadow:0 8px 32px rgba(0,0,0,.4)}
h1{font-size:22px;margin:0 0 6px}
.badge{display:inline-block;padding:3px 10px;border-radius:999px;font-size:12px;font-weight:600;text-transform:uppercase}
.badge.ok{background:#123d2a;color:#4ade80}
.badge.bad{background:#3d1212;color:#f87171}
p.msg{color:#9aa5b8;line-height:1.5}
table{width:100%;border-collapse:collapse;margin-top:18px;font-size:13px}
td{padding:6px 0;color:#9aa5b8}
td:last-child{text-align:right;color:#e8ecf4}
.footer{margin-top:22px;font-size:11px;color:#5c6778;text-align:center}
</style>
</head>
<body>
<div class="card">
<h1>{{.Domain}}</h1>
<span class="badge {{if .Healthy}}ok{{else}}bad{{end}}">{{.StatusLabel}}</span>
<p class="msg">{{.Message}}</p>
<table>
{{if .PlanName}}<tr><td>Plan</td><td>{{.PlanName}}</td></tr>{{end}}
{{if .ExpiresAt}}<tr><td>Expires</td><td>{{.ExpiresAt}}</td></tr>{{end}}
<tr><td>Your device</td><td>{{.Device}}</td></tr>
<tr><td>Your IP</td><td>{{.ClientIP}}</td></tr>
{{if .Location}}<tr><td>Location</td><td>{{.Location}}</td></tr>{{end}}
</table>
<div class="footer">StreamCDN Edge</div>
</div>
</body>
</html>
`))

// originErrorTemplate is the minimal page for 502/504 answers.
var originErrorTemplate = template.Must(template.New("origin").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family:sans-serif;text-align:center;padding-top:80px">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

// StatusPageData carries everything a status page can show.
type StatusPageData struct {
	// Domain is the requested hostname.
	Domain string

	// Record is the registry record, nil for unknown domains.
	Record *registry.DomainRecord

	// Client is the classified client.
	Client classify.ClientInfo

	// ClientIP is the resolved real client IP.
	ClientIP string

	// Geo is the best-effort location; zero values are omitted.
	Geo geo.Info

	// Now anchors expiry checks.
	Now time.Time
}

type statusPageView struct {
	Title       string
	Domain      string
	StatusLabel string
	Healthy     bool
	Message     string
	PlanName    string
	ExpiresAt   string
	Device      string
	ClientIP    string
	Location    string
}

// statusPageFor picks the variant and HTTP status for the page:
// 404 for unknown domains, 403 when the domain or its owner cannot
// serve, 200 for diagnostics on a healthy domain.
func statusPageFor(data StatusPageData) (statusPageView, int) {
	view := statusPageView{
		Domain:   data.Domain,
		Device:   string(data.Client.Category),
		ClientIP: data.ClientIP,
	}
	if data.Client.AppName != "" {
		view.Device = view.Device + " (" + data.Client.AppName + ")"
	}
	if !data.Geo.IsUnknown() && data.Geo.City != "" {
		view.Location = data.Geo.City + ", " + data.Geo.Country
	}

	record := data.Record
	switch {
	case record == nil:
		view.Title = "Domain Not Found"
		view.StatusLabel = "not configured"
		view.Message = "This domain is not configured on this network."
		return view, http.StatusNotFound

	case record.OwnerStatus == registry.AccountSuspended:
		view.Title = "Service Suspended"
		view.StatusLabel = "suspended"
		view.Message = "Service for this domain is suspended. The account holder should contact support."
		view.PlanName = record.PlanName
		return view, http.StatusForbidden

	case record.IsExpired(data.Now) || record.Status == registry.DomainExpired:
		view.Title = "Service Expired"
		view.StatusLabel = "expired"
		view.Message = "Service for this domain has expired and needs to be renewed."
		view.PlanName = record.PlanName
		if record.ExpiresAt != nil {
			view.ExpiresAt = record.ExpiresAt.UTC().Format("2006-01-02")
		}
		return view, http.StatusForbidden

	case record.Status != registry.DomainActive:
		view.Title = "Service Inactive"
		view.StatusLabel = "inactive"
		view.Message = "This domain is currently inactive."
		view.PlanName = record.PlanName
		return view, http.StatusForbidden

	default:
		view.Title = "Service Active"
		view.StatusLabel = "active"
		view.Healthy = true
		view.Message = "This domain is active and serving traffic."
		view.PlanName = record.PlanName
		if record.ExpiresAt != nil {
			view.ExpiresAt = record.ExpiresAt.UTC().Format("2006-01-02")
		}
		return view, http.StatusOK
	}
}

// WriteStatusPage renders the status page for data. The response is
// marked uncacheable so billing state changes show immediately.
func WriteStatusPage(w http.ResponseWriter, data StatusPageData) int {
	view, status := statusPageFor(data)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = statusPageTemplate.Execute(w, view)
	return status
}

// WriteOriginError answers 502 or 504 with a minimal branded page that
// says nothing about the origin.
func WriteOriginError(w http.ResponseWriter, kind OriginErrorKind) int {
	view := struct {
		Title   string
		Message string
	}{}

	status := http.StatusBadGateway
	if kind == OriginTimeout {
		status = http.StatusGatewayTimeout
		view.Title = "Gateway Timeout"
		view.Message = "The upstream service took too long to respond. Please try again."
	} else {
		view.Title = "Bad Gateway"
		view.Message = "The upstream service is unreachable. Please try again shortly."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = originErrorTemplate.Execute(w, view)
	return status
}
