// Package http contains the HTTP handlers for the upload/analyze/report
// workflow. Handlers translate between the wire format and the service
// layer; every error is rendered as an RFC 7807 problem document
// through the shared ErrorHandler.
package http
