// Package services defines the shared error taxonomy for the export
// pipeline.
//
// Every failure that crosses the exporter boundary is tagged with one of the
// sentinel markers below via Wrap, so callers can classify outcomes with
// errors.Is without parsing message text. User-facing text (including
// installation guidance for a missing encoder) rides along in the wrapped
// message.
package services
