// Package logging builds the slog loggers used across the pipeline.
//
// It provides a console handler for interactive runs, a JSON handler for
// scheduled runs, standardized field keys shared by every stage, and helpers
// that derive logger attributes from context values stamped by
// internal/services.
package logging
