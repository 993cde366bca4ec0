package postgres

import (
	"database/sql"
	"errors"

	"esg-sync/internal/repository"
)

func isPermanentError(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, repository.ErrConnectorNotFound) ||
		errors.Is(err, repository.ErrSyncStateNotFound) ||
		errors.Is(err, repository.ErrInvalidQueryParameters)
}
