// Package geo resolves client IP addresses to coarse geolocation.
//
// Resolution is cache-aside: a SQLite-backed cache is consulted first,
// and on miss a fixed-priority list of external HTTP providers is tried
// in order until one returns a well-formed response. Results are written
// through to the cache so concurrent callers converge. Resolution never
// fails: private addresses map to a Local/Private sentinel and provider
// exhaustion maps to an Unknown sentinel attached to analytics only.
package geo
