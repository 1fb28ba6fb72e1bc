// StreamCDN Edge is a domain-aware streaming reverse proxy.
//
// It fronts customer streaming domains, classifies each client from its
// User-Agent, and forwards streaming-capable clients transparently to
// the customer's origin while browsers, bots and unservable domains get
// a branded status page. Requests are enriched with geolocation and
// per-client session tracking, and access events are shipped to an
// analytics backend on a best-effort basis.
//
// Usage:
//
//	# Start the edge with default configuration
//	edge run
//
//	# Start with a custom configuration file
//	edge run --config /etc/streamcdn/edge.yaml
//
//	# Validate a configuration file
//	edge validate --config /etc/streamcdn/edge.yaml
//
//	# Look up a domain in the registry
//	edge check tv.example --format json
//
//	# Show version information
//	edge version
package main

func main() {
	Execute()
}
