// Package plaidapi is the only place the service talks to Plaid. It builds
// fully populated outbound requests, calls the official SDK, and turns every
// failure into an *APIError so callers never deal with SDK error types.
package plaidapi
