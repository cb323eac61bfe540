package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. POINTS_RPC.
const EnvPrefix = "POINTS"

// FetchConfig configures raw Transfer log retrieval.
type FetchConfig struct {
	RPCURL            string
	FromBlock         uint64
	ToBlock           uint64
	Token             string
	NFT               string
	BatchSize         uint64
	MinBatchSize      uint64
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	TimestampCache    string
	LogLevel          string
}

// BlocksConfig configures day-boundary discovery.
type BlocksConfig struct {
	RPCURL         string
	StartDate      time.Time
	EndDate        time.Time
	BlocksPerDay   uint64
	IncludePartial bool
	Out            string
	TimestampCache string
	LogLevel       string
}

// ReplayConfig is shared by the states, points, check and snapshot commands.
type ReplayConfig struct {
	BlocksFile    string
	Events        []string
	Token         string
	NFT           string
	SnapshotFile  string
	SnapshotBlock uint64
	DataDir       string
	RateBase      int64
	RateNFT       int64
	VestingDays   int
	PGDSN         string
	PGBatchSize   int
	MetricsAddr   string
	LogLevel      string
}

// VerifyConfig configures the on-chain balance spot check.
type VerifyConfig struct {
	RPCURL   string
	Token    string
	DataDir  string
	Day      int
	Samples  int
	LogLevel string
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(10000),
		"min-batch-size":     uint64(1000),
		"out":                "./data/logs.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"log-level":          "info",
	})
	if err != nil {
		return FetchConfig{}, err
	}

	return FetchConfig{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Token:             v.GetString("token"),
		NFT:               v.GetString("nft"),
		BatchSize:         v.GetUint64("batch-size"),
		MinBatchSize:      v.GetUint64("min-batch-size"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		TimestampCache:    v.GetString("timestamp-cache"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}

// LoadBlocks merges config file, environment variables, and flags into BlocksConfig.
func LoadBlocks(cfgFile string, flags *pflag.FlagSet) (BlocksConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"blocks-per-day": uint64(7200),
		"out":            "./data/daily_blocks.json",
		"log-level":      "info",
	})
	if err != nil {
		return BlocksConfig{}, err
	}

	start, err := ParseDate(v.GetString("start-date"))
	if err != nil {
		return BlocksConfig{}, fmt.Errorf("start-date: %w", err)
	}
	end, err := ParseDate(v.GetString("end-date"))
	if err != nil {
		return BlocksConfig{}, fmt.Errorf("end-date: %w", err)
	}

	return BlocksConfig{
		RPCURL:         v.GetString("rpc"),
		StartDate:      start,
		EndDate:        end,
		BlocksPerDay:   v.GetUint64("blocks-per-day"),
		IncludePartial: v.GetBool("include-partial"),
		Out:            v.GetString("out"),
		TimestampCache: v.GetString("timestamp-cache"),
		LogLevel:       v.GetString("log-level"),
	}, nil
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"blocks":        "./data/daily_blocks.json",
		"events":        "./data/logs.jsonl",
		"snapshot":      "./data/snapshot.json",
		"data-dir":      "./data",
		"rate-base":     int64(1500),
		"rate-nft":      int64(2130),
		"vesting-days":  90,
		"pg-batch-size": 1000,
		"log-level":     "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		BlocksFile:    v.GetString("blocks"),
		Events:        getStringSlice(v, "events"),
		Token:         v.GetString("token"),
		NFT:           v.GetString("nft"),
		SnapshotFile:  v.GetString("snapshot"),
		SnapshotBlock: v.GetUint64("block"),
		DataDir:       v.GetString("data-dir"),
		RateBase:      v.GetInt64("rate-base"),
		RateNFT:       v.GetInt64("rate-nft"),
		VestingDays:   v.GetInt("vesting-days"),
		PGDSN:         v.GetString("pg-dsn"),
		PGBatchSize:   v.GetInt("pg-batch-size"),
		MetricsAddr:   v.GetString("metrics-addr"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

// LoadVerify merges config file, environment variables, and flags into VerifyConfig.
// A negative day selects the last persisted day.
func LoadVerify(cfgFile string, flags *pflag.FlagSet) (VerifyConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"data-dir":  "./data",
		"day":       -1,
		"samples":   20,
		"log-level": "info",
	})
	if err != nil {
		return VerifyConfig{}, err
	}

	return VerifyConfig{
		RPCURL:   v.GetString("rpc"),
		Token:    v.GetString("token"),
		DataDir:  v.GetString("data-dir"),
		Day:      v.GetInt("day"),
		Samples:  v.GetInt("samples"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// LatestConfig configures the latest-copy command.
type LatestConfig struct {
	DataDir  string
	LogLevel string
}

func LoadLatest(cfgFile string, flags *pflag.FlagSet) (LatestConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"data-dir":  "./data",
		"log-level": "info",
	})
	if err != nil {
		return LatestConfig{}, err
	}
	return LatestConfig{DataDir: v.GetString("data-dir"), LogLevel: v.GetString("log-level")}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// ParseDate parses a calendar day (YYYY-MM-DD), an RFC3339 timestamp, or unix
// seconds, truncated to the UTC day. Empty input yields the zero time.
func ParseDate(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	var tm time.Time
	switch {
	case isNumeric(input):
		secs, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		tm = time.Unix(secs, 0)
	default:
		var err error
		tm, err = time.Parse("2006-01-02", input)
		if err != nil {
			tm, err = time.Parse(time.RFC3339, input)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid date %q", input)
			}
		}
	}
	tm = tm.UTC()
	return time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, time.UTC), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
