package config

import "time"

// Path config
const (
	LogPath    = "./logs/"
	ConfigPath = "./"
)

// Network config
const (
	DEFAULT_GENESIS_TIMEOUT = 180 * time.Second // waiting for the canonical node to report genesis
)

// Scheduling config
const (
	// Mainnet slot is 12s, blocks are requested right at the slot boundary
	DEFAULT_SECONDS_PER_SLOT = 12
	DEFAULT_REQUEST_TIMEOUT  = 6 * time.Second
	DEFAULT_CYCLE_DEADLINE   = 8 * time.Second
	DEFAULT_REQUEST_OFFSET   = 0 * time.Second

	DEFAULT_REPORT_QUEUE_SIZE = 64   // pending slot reports before dropping
	SEEN_SLOT_CACHE_SIZE      = 1024 // slots remembered to avoid double dispatch
)

// Reporting config
const (
	POST_RETRY_TIMES        = 2
	POST_TIMEOUT            = 10 * time.Second
	DISTANCE_SCORE_DIGITS   = 6 // precision of scores written to sinks
	CLICKHOUSE_DB_NAME      = "blockdreamer"
	CLICKHOUSE_DIAL_TIMEOUT = 5 * time.Second
)
