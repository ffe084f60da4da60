package db

import (
	"context"
	"fmt"

	"blockdreamer/config"
	"blockdreamer/logger"
	"blockdreamer/types"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/spf13/viper"
)

type ClickhouseDB struct {
	conn     driver.Conn
	database string
}

// DatabaseName is CLICKHOUSE_DATABASE, or CLICKHOUSE_DB_NAME when unset. The connection, the DDL
// and every query use it.
func DatabaseName() string {
	if name := viper.GetString("CLICKHOUSE_DATABASE"); name != "" {
		return name
	}
	return config.CLICKHOUSE_DB_NAME
}

func NewClickhouse() (Database, error) {
	database := DatabaseName()
	opts := &clickhouse.Options{
		Addr: []string{viper.GetString("CLICKHOUSE_ADDR")},
		Auth: clickhouse.Auth{
			Database: database,
			Username: viper.GetString("CLICKHOUSE_USERNAME"),
			Password: viper.GetString("CLICKHOUSE_PASSWORD"),
		},
		DialTimeout:  config.CLICKHOUSE_DIAL_TIMEOUT,
		Compression:  &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		MaxOpenConns: 10,
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &ClickhouseDB{conn: conn, database: database}, nil
}

// Database interface implementation
func (d *ClickhouseDB) Close() error {
	return d.conn.Close()
}

func (d *ClickhouseDB) EnsureDatabaseExists() error {
	query := fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, d.database)
	if err := d.conn.Exec(context.Background(), query); err != nil {
		return fmt.Errorf("failed to ensure database exists: %w", err)
	}
	logger.GlobalLogger.Info("Database ensured to exist", "database", d.database)
	return nil
}

func (d *ClickhouseDB) CreateTables() error {
	for _, q := range createTableQueries(d.database) {
		if err := d.conn.Exec(context.Background(), q); err != nil {
			return err
		}
		logger.GlobalLogger.Info("Check or create table in DB", "query", q)
	}
	return nil
}

func createTableQueries(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.slot_reports
		(
			reportId String,
			slot UInt64,
			timestamp DateTime64(3),
			durationMs UInt64,
			nodeCount UInt16,
			successCount UInt16,
			pairCount UInt16,
			distanceSkipped String
		)
		ENGINE = ReplacingMergeTree
		PRIMARY KEY slot
		ORDER BY slot
		SETTINGS index_granularity = 8192`, database),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.fetch_results
		(
			reportId String,
			slot UInt64,
			timestamp DateTime64(3),
			node String,
			label String,
			status LowCardinality(String),
			httpStatus UInt16,
			error String,
			latencyMs UInt64,

			version LowCardinality(String),
			parentRoot String,
			graffiti String,
			graffitiHint LowCardinality(String),
			feeRecipient String,
			txCount UInt32,
			attCount UInt32,
			syncBits UInt16
		)
		ENGINE = MergeTree
		ORDER BY (slot, node)
		SETTINGS index_granularity = 8192`, database),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.block_distances
		(
			reportId String,
			slot UInt64,
			timestamp DateTime64(3),
			nodeA String,
			nodeB String,
			comparable Bool,
			reason String,
			score Float64,

			graffiti Float64,
			feeRecipient Float64,
			parentRoot Float64,
			txOrdering Float64,
			txInclusion Float64,
			attestations Float64,
			syncAggregate Float64,
			timestampSkew Float64,
			attestationRaw UInt64,
			weightsVersion LowCardinality(String)
		)
		ENGINE = MergeTree
		ORDER BY (slot, nodeA, nodeB)
		SETTINGS index_granularity = 8192`, database),
	}
}

func (d *ClickhouseDB) DropTables() error {
	dbName := d.database
	rows, err := d.conn.Query(context.Background(),
		fmt.Sprintf("SHOW TABLES FROM %s", dbName))
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, t)
	}

	for _, t := range tables {
		q := fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", dbName, t)
		if err := d.conn.Exec(context.Background(), q); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", t, err)
		}
		logger.GlobalLogger.Info("Dropped table", "table", t)
	}

	return nil
}

func (d *ClickhouseDB) Exec(query string, args ...any) error {
	if err := d.conn.Exec(context.Background(), query, args...); err != nil {
		return err
	}
	return nil
}

func (d *ClickhouseDB) table(name string) string {
	return d.database + "." + name
}

func insertRows[T any](d *ClickhouseDB, table string, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(context.Background(), "INSERT INTO "+d.table(table))
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := batch.AppendStruct(r); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (d *ClickhouseDB) InsertSlotReports(rows []*types.SlotReportRow) error {
	return insertRows(d, "slot_reports", rows)
}

func (d *ClickhouseDB) InsertFetchResults(rows []*types.FetchResultRow) error {
	return insertRows(d, "fetch_results", rows)
}

func (d *ClickhouseDB) InsertDistances(rows []*types.DistanceRow) error {
	return insertRows(d, "block_distances", rows)
}

func (d *ClickhouseDB) QueryLastSlot() (uint64, bool, error) {
	row := d.conn.QueryRow(context.Background(), "SELECT max(slot) FROM "+d.table("slot_reports"))
	var slot *uint64
	if err := row.Scan(&slot); err != nil {
		return 0, false, fmt.Errorf("QueryLastSlot scan failed: %w", err)
	}
	// max over an empty table is 0 unless the column is nullable
	if slot == nil || *slot == 0 {
		return 0, false, nil
	}
	return *slot, true, nil
}
