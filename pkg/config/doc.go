// Package config defines the edge's configuration: a YAML file with
// sections for the proxy server, domain registry client, geolocation,
// session tracking, classification, forwarding, analytics and
// telemetry.
//
// Loading is a fixed sequence: parse YAML, apply defaults, apply
// STREAMCDN_SECTION_FIELD environment overrides, validate. Validation
// collects every failed rule into one error so an operator fixes a bad
// file in one pass. A Watcher reloads the file on change; a reload that
// fails validation is logged and discarded.
package config
