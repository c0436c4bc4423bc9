// Package validation provides struct-tag validation built on
// go-playground/validator. Validation failures surface as AppError values
// with per-field detail, so handlers can return them directly.
package validation
