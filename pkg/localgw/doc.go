// Package localgw serves a composed gateway over net/http for local development.
//
// It reproduces what the provisioned REST API does with the graph's configuration:
// OPTIONS requests are answered from the CORS settings without reaching the function,
// every other method on the root or any nested path is handed to the function as an
// API Gateway proxy event, and the function's response is written back as returned.
// Access log entries go to the structured logger tagged with the log sink name.
package localgw
