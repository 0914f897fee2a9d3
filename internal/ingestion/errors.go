package ingestion

import "errors"

var (
	// ErrSourceUnavailable is returned when the ledger cannot be reached or rejects a query.
	ErrSourceUnavailable = errors.New("event source unavailable")

	// ErrArchiveWrite is returned when a run requires the archive and writing to it failed.
	ErrArchiveWrite = errors.New("archive write failed")
)
