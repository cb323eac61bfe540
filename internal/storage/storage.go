package storage

import (
	"context"

	"vaultPoints/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// Sink persists replay outputs. Sinks are only called once a day has fully replayed.
type Sink interface {
	PutDailyState(ctx context.Context, state model.StateRecord) error
	PutPoints(ctx context.Context, increment, cumulative model.PointsRecord) error
	PutIntegrity(ctx context.Context, report model.IntegrityReport) error
}

// MultiSink fans every call out to each sink in order, stopping at the first error.
type MultiSink []Sink

func (m MultiSink) PutDailyState(ctx context.Context, state model.StateRecord) error {
	for _, sink := range m {
		if err := sink.PutDailyState(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) PutPoints(ctx context.Context, increment, cumulative model.PointsRecord) error {
	for _, sink := range m {
		if err := sink.PutPoints(ctx, increment, cumulative); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) PutIntegrity(ctx context.Context, report model.IntegrityReport) error {
	for _, sink := range m {
		if err := sink.PutIntegrity(ctx, report); err != nil {
			return err
		}
	}
	return nil
}
