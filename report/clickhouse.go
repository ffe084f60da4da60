package report

import (
	"context"
	"errors"
	"fmt"

	"blockdreamer/db"
	"blockdreamer/types"
)

type ClickhouseReporter struct {
	db db.Database
}

func NewClickhouseReporter(database db.Database) *ClickhouseReporter {
	return &ClickhouseReporter{db: database}
}

func (c *ClickhouseReporter) Report(_ context.Context, r *types.SlotReport) error {
	var errs []error
	if err := c.db.InsertSlotReports([]*types.SlotReportRow{SlotReportRow(r)}); err != nil {
		errs = append(errs, fmt.Errorf("insert slot report: %w", err))
	}
	if err := c.db.InsertFetchResults(FetchResultRows(r)); err != nil {
		errs = append(errs, fmt.Errorf("insert fetch results: %w", err))
	}
	if err := c.db.InsertDistances(DistanceRows(r)); err != nil {
		errs = append(errs, fmt.Errorf("insert distances: %w", err))
	}
	return errors.Join(errs...)
}
