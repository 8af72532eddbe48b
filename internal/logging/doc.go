// Package logging provides the leveled logger used across the media catalog.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The package-level printf helpers and the Named child loggers share a single
// zap core writing to stderr. The level is read once from DEBUG or LOG_LEVEL
// and can be changed later with SetLevel.
package logging
