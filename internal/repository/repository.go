package repository

import (
	"errors"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Postgres error codes we branch on.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// IsForeignKeyViolation reports whether err is a foreign-key violation.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation
}

// QueryMetrics receives per-query timings, slow or not.
type QueryMetrics interface {
	ObserveDBQuery(name string, elapsed time.Duration)
}

// QueryObserver warns about queries exceeding the configured threshold and
// forwards every timing to an optional metrics sink. Diagnostic only; the
// query result is returned regardless.
type QueryObserver struct {
	logger    *zap.Logger
	threshold time.Duration
	metrics   QueryMetrics
}

// NewQueryObserver builds an observer. A zero threshold disables the slow
// query warnings.
func NewQueryObserver(logger *zap.Logger, threshold time.Duration) QueryObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return QueryObserver{logger: logger, threshold: threshold}
}

// WithMetrics returns a copy of the observer reporting timings to m.
func (o QueryObserver) WithMetrics(m QueryMetrics) QueryObserver {
	o.metrics = m
	return o
}

func (o QueryObserver) observe(start time.Time, name string) {
	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.ObserveDBQuery(name, elapsed)
	}
	if o.threshold <= 0 {
		return
	}
	if elapsed >= o.threshold {
		o.logger.Warn("slow query",
			zap.String("query", name),
			zap.Duration("duration", elapsed),
			zap.Duration("threshold", o.threshold))
	}
}
