// Package api implements the HTTP handlers for the account and audio
// resources. Handlers validate request payloads, delegate to the services,
// and translate domain errors into problem-detail responses.
package api
