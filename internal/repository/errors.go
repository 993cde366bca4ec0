package repository

import (
	"errors"
)

var (
	ErrConnectorNotFound      = errors.New("connector not found")
	ErrSyncStateNotFound      = errors.New("entity sync state not found")
	ErrDatabaseUnavailable    = errors.New("database is unavailable")
	ErrDatabaseGeneric        = errors.New("database error occurred while processing request")
	ErrInvalidQueryParameters = errors.New("invalid query parameters provided")
)
