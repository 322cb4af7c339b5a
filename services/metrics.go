package services

import (
	"context"
	"time"
)

// Metrics is the slice of the CloudWatch client services use.
type Metrics interface {
	RecordCount(ctx context.Context, name string, dimensions map[string]string) error
}

type nopMetrics struct{}

func (nopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }

func count(m Metrics, name string, dims map[string]string) {
	if m == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.RecordCount(ctx, name, dims)
	}()
}
