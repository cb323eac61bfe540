package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"vaultPoints/internal/model"
)

const (
	StatesDir     = "states"
	PointsDir     = "points"
	AggregatedDir = "aggregated_points"
	LatestDir     = "latest"
	IntegrityFile = "integrity.json"
)

// FileSink writes one JSON document per day under a data directory.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Dir() string {
	return s.dir
}

func (s *FileSink) PutDailyState(_ context.Context, state model.StateRecord) error {
	return WriteJSON(dayPath(s.dir, StatesDir, state.DayIndex), state)
}

func (s *FileSink) PutPoints(_ context.Context, increment, cumulative model.PointsRecord) error {
	if err := WriteJSON(dayPath(s.dir, PointsDir, increment.DayIndex), increment); err != nil {
		return err
	}
	return WriteJSON(dayPath(s.dir, AggregatedDir, cumulative.DayIndex), cumulative)
}

func (s *FileSink) PutIntegrity(_ context.Context, report model.IntegrityReport) error {
	return WriteJSON(filepath.Join(s.dir, IntegrityFile), report)
}

// WriteJSON writes v as indented JSON through a temporary file and rename.
func WriteJSON(path string, v interface{}) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s tmp: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// DayFiles lists the day indexes present in dir/sub, ascending.
func DayFiles(dir, sub string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(dir, sub))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", sub, err)
	}
	var days []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		day, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Ints(days)
	return days, nil
}

// LoadStateRecord reads the persisted state of one day.
func LoadStateRecord(dir string, day int) (model.StateRecord, error) {
	var record model.StateRecord
	err := ReadJSON(dayPath(dir, StatesDir, day), &record)
	return record, err
}

// LoadPointsRecord reads one day of points from sub (PointsDir or AggregatedDir).
func LoadPointsRecord(dir, sub string, day int) (model.PointsRecord, error) {
	var record model.PointsRecord
	err := ReadJSON(dayPath(dir, sub, day), &record)
	return record, err
}

// CopyLatest copies the last day's aggregated points and state into dir/latest.
// It returns the copied day index.
func CopyLatest(dir string) (int, error) {
	pointsDays, err := DayFiles(dir, AggregatedDir)
	if err != nil {
		return 0, err
	}
	stateDays, err := DayFiles(dir, StatesDir)
	if err != nil {
		return 0, err
	}
	if len(pointsDays) == 0 || len(stateDays) == 0 {
		return 0, fmt.Errorf("no daily outputs under %s", dir)
	}
	last := pointsDays[len(pointsDays)-1]
	if stateLast := stateDays[len(stateDays)-1]; stateLast != last {
		return 0, fmt.Errorf("latest points day %d does not match latest state day %d", last, stateLast)
	}

	copies := []struct{ src, dst string }{
		{dayPath(dir, AggregatedDir, last), filepath.Join(dir, LatestDir, "today_points.json")},
		{dayPath(dir, StatesDir, last), filepath.Join(dir, LatestDir, "today_states.json")},
	}
	for _, c := range copies {
		data, err := os.ReadFile(c.src)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", c.src, err)
		}
		if err := ensureDir(c.dst); err != nil {
			return 0, err
		}
		if err := os.WriteFile(c.dst, data, 0o644); err != nil {
			return 0, fmt.Errorf("write %s: %w", c.dst, err)
		}
	}
	return last, nil
}

func dayPath(dir, sub string, day int) string {
	return filepath.Join(dir, sub, fmt.Sprintf("%d.json", day))
}
