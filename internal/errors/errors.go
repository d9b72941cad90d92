// Package errors defines the application error model: domain sentinel
// errors raised by the loading/rendering/assembly pipeline, and the
// RFC 7807 machinery that maps them onto HTTP responses.
package errors

import (
	"errors"
	"fmt"
)

// Domain sentinel errors. Every failure the pipeline can surface to the
// user wraps one of these, so callers classify with errors.Is rather
// than string matching.
var (
	// ErrUnsupportedFormat is returned for upload extensions other than
	// csv/xlsx/xls.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrParse is returned when the file extension is recognized but the
	// content cannot be parsed.
	ErrParse = errors.New("failed to parse file")

	// ErrEmptyData is returned for files with no data rows or no columns.
	ErrEmptyData = errors.New("file contains no data")

	// ErrNoDataToPlot is returned when a selected column has zero
	// non-missing values; no image file is produced in that case.
	ErrNoDataToPlot = errors.New("no data to plot")

	// ErrReportAssembly is returned when the PDF cannot be assembled,
	// e.g. a chart image went missing between rendering and embedding.
	// No partial document is ever handed to the caller.
	ErrReportAssembly = errors.New("report assembly failed")

	// ErrInvalidTransition is returned when a user action is not valid
	// in the session's current state.
	ErrInvalidTransition = errors.New("action not valid in current session state")

	// ErrUnknownColumn is returned when an analysis selection names a
	// column the uploaded table does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrColumnType is returned when an analysis selection names a column
	// whose classified type does not match the requested analysis.
	ErrColumnType = errors.New("column type does not match requested analysis")

	// ErrSessionNotFound is returned for expired or unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
)

// UnsupportedFormat wraps ErrUnsupportedFormat with the offending extension.
func UnsupportedFormat(ext string) error {
	return fmt.Errorf("%w: %q (expected .csv, .xlsx or .xls)", ErrUnsupportedFormat, ext)
}

// Parse wraps a parser failure with its cause.
func Parse(cause error) error {
	return fmt.Errorf("%w: %v", ErrParse, cause)
}

// NoDataToPlot wraps ErrNoDataToPlot with the column name.
func NoDataToPlot(column string) error {
	return fmt.Errorf("%w: column %q has no non-missing values", ErrNoDataToPlot, column)
}

// ReportAssembly wraps an assembly failure with its cause.
func ReportAssembly(cause error) error {
	return fmt.Errorf("%w: %v", ErrReportAssembly, cause)
}

// InvalidTransition wraps ErrInvalidTransition with the rejected action
// and the state it was attempted in.
func InvalidTransition(action, state string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, state)
}

// UnknownColumn wraps ErrUnknownColumn with the column name.
func UnknownColumn(column string) error {
	return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
}

// ColumnType wraps ErrColumnType with column and expected type.
func ColumnType(column, want string) error {
	return fmt.Errorf("%w: %q is not %s", ErrColumnType, column, want)
}
