// Package api defines the deployment queue domain model: the Deployment
// record, its taxonomy identity, the status state machine, request
// validation, and the structured error taxonomy shared by all layers.
//
// Everything in this package is pure: no I/O, no storage, no clocks
// beyond timestamps passed in by callers.
package api
