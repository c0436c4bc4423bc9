// Package logger provides structured logging for workshopkit components
// using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.Get("segmenter")
//	log.Info("segment materialized", logger.Fields(logger.FieldSegment, 2))
package logger
