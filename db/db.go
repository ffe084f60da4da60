package db

import (
	"fmt"

	"blockdreamer/types"
)

type Database interface {
	Close() error
	EnsureDatabaseExists() error
	CreateTables() error
	DropTables() error

	Exec(query string, args ...any) error
	InsertSlotReports(rows []*types.SlotReportRow) error
	InsertFetchResults(rows []*types.FetchResultRow) error
	InsertDistances(rows []*types.DistanceRow) error

	// QueryLastSlot returns the most recent reported slot, false when nothing was reported yet
	QueryLastSlot() (uint64, bool, error)
	// QueryNodeFailures(node string, since uint64) (uint64, error)
}

// Setup creates the database and the tables when they are missing.
func Setup(d Database) error {
	if err := d.EnsureDatabaseExists(); err != nil {
		return err
	}
	if err := d.CreateTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}
