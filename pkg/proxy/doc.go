// Package proxy is the request path of the edge: real client IP
// extraction, the routing decision, transparent forwarding to customer
// origins, and the branded status pages served to everything that is
// not forwarded.
//
// The Router decides per request whether to proxy, redirect, or render
// a status page, based on the registry record and the classified
// client. The Engine performs the actual forward: it streams the origin
// response through with constant memory, counts bytes for analytics,
// and retries connection-level failures. Geolocation and analytics are
// side effects; neither ever delays the stream.
package proxy
