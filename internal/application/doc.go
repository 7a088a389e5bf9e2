// Package application provides application initialization and dependency wiring.
// It constructs the Plaid client once per process, injects it into the API
// handlers, and assembles the routers, pages, metrics endpoint and HTTP server,
// keeping the main package focused on CLI parsing and orchestration.
package application
