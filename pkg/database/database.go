// Package database holds connection and health-check helpers for the
// document stores behind the user repositories.
package database

import "errors"

var (
	ErrFailedToConnect   = errors.New("database: failed to connect")
	ErrHealthcheckFailed = errors.New("database: healthcheck failed")
)
