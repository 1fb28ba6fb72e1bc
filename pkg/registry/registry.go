// Package registry is the client for the external domain registry: the
// lookup service mapping a request's Host header to the customer's
// origin, serving policy and owning account. Records are fetched fresh
// per request; billing and expiry changes must take effect immediately,
// so the core never caches them.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a hostname has no domain record.
var ErrNotFound = errors.New("domain not found")

// DomainStatus is the administrative state of a domain record.
type DomainStatus string

const (
	DomainActive   DomainStatus = "active"
	DomainInactive DomainStatus = "inactive"
	DomainExpired  DomainStatus = "expired"
)

// AccountStatus is the state of the owning customer account.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

// DomainRecord is the registry's view of one configured hostname. The
// core reads it per request and never mutates it.
type DomainRecord struct {
	ID               string        `json:"id"`
	Hostname         string        `json:"hostname"`
	OriginURL        string        `json:"origin_url"`
	Status           DomainStatus  `json:"status"`
	AnalyticsEnabled bool          `json:"analytics_enabled"`
	RedirectOnly     bool          `json:"redirect_only"`
	OwnerStatus      AccountStatus `json:"owner_status"`
	OwnerName        string        `json:"owner_name,omitempty"`
	OwnerCompany     string        `json:"owner_company,omitempty"`
	PlanName         string        `json:"plan_name,omitempty"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
}

// IsExpired reports whether the record's expiry, if any, has passed.
func (r *DomainRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Servable reports whether traffic for this domain may be forwarded to
// its origin: the domain is active and unexpired and the owning account
// is in good standing.
func (r *DomainRecord) Servable(now time.Time) bool {
	return r.Status == DomainActive && !r.IsExpired(now) && r.OwnerStatus == AccountActive
}

// Client resolves hostnames to domain records. Implementations must
// return ErrNotFound (possibly wrapped) for unknown hostnames.
type Client interface {
	Lookup(ctx context.Context, hostname string) (*DomainRecord, error)
}
