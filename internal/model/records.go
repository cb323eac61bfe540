package model

// DayBlocks is one entry of the daily blocks file.
type DayBlocks struct {
	Date                string `json:"date"`
	FirstBlock          uint64 `json:"first_block"`
	LastBlock           uint64 `json:"last_block"`
	FirstBlockTimestamp uint64 `json:"first_block_timestamp"`
	LastBlockTimestamp  uint64 `json:"last_block_timestamp"`
}

// DailyBlocksMeta describes how a daily blocks file was produced.
type DailyBlocksMeta struct {
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date"`
	LatestBlock          uint64 `json:"latest_block"`
	LatestBlockTimestamp uint64 `json:"latest_block_timestamp"`
	TotalDays            int    `json:"total_days"`
	GeneratedAt          string `json:"generated_at"`
}

// DailyBlocksFile is the persisted output of day-boundary discovery.
type DailyBlocksFile struct {
	Metadata    DailyBlocksMeta `json:"metadata"`
	DailyBlocks []DayBlocks     `json:"daily_blocks"`
}

// UserStateRecord is the persisted form of a positive vault position.
type UserStateRecord struct {
	Balance                        string `json:"balance"`
	LastPositiveBalanceUpdateDay   string `json:"last_positive_balance_update_day"`
	LastPositiveBalanceUpdateBlock uint64 `json:"last_positive_balance_update_block"`
	LastNegativeBalanceUpdateBlock uint64 `json:"last_negative_balance_update_block"`
}

// VaultStates holds the balance ledger at both ends of a day.
type VaultStates struct {
	StartState map[string]UserStateRecord `json:"start_state"`
	EndState   map[string]UserStateRecord `json:"end_state"`
}

// NFTStates holds the NFT ownership ledger at both ends of a day.
type NFTStates struct {
	StartState map[string][]uint64 `json:"start_state"`
	EndState   map[string][]uint64 `json:"end_state"`
}

// StateRecord is the persisted daily state, keyed by day index.
type StateRecord struct {
	StartBlock uint64      `json:"start_block"`
	EndBlock   uint64      `json:"end_block"`
	Date       string      `json:"date"`
	DayIndex   int         `json:"day_index"`
	NFT        NFTStates   `json:"nft"`
	PilotVault VaultStates `json:"pilot_vault"`
}

// PointsRecord is a per-day points file. Points are decimal strings.
type PointsRecord struct {
	StartBlock uint64            `json:"start_block"`
	EndBlock   uint64            `json:"end_block"`
	Date       string            `json:"date"`
	DayIndex   int               `json:"day_index"`
	Points     map[string]string `json:"points"`
}

// SnapshotFile is the reference ledger captured at the program start block.
type SnapshotFile struct {
	BlockNumber uint64            `json:"block_number"`
	Balances    map[string]string `json:"balances"`
}

// IntegrityReport is the persisted result of an integrity run.
type IntegrityReport struct {
	Passed        bool              `json:"passed"`
	SnapshotBlock uint64            `json:"snapshot_block"`
	DaysChecked   int               `json:"days_checked"`
	Violations    map[string]uint64 `json:"violations"`
	CheckedAt     string            `json:"checked_at"`
}
