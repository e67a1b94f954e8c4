package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paahaad/hypernova-sub001/internal/model"
)

// MetricsFile is a MetricsSink that appends one JSON document per pool
// snapshot to a newline-delimited file.
type MetricsFile struct {
	path string
	mu   sync.Mutex
}

func NewMetricsFile(path string) *MetricsFile {
	return &MetricsFile{path: path}
}

// PutMetricsBatch encodes the whole batch before touching the file and
// appends it in one write.
func (f *MetricsFile) PutMetricsBatch(metrics []model.PoolMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range metrics {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode metrics for pool %s: %w", m.PoolID, err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	out, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics file %s: %w", f.path, err)
	}
	if _, err := out.Write(buf.Bytes()); err != nil {
		_ = out.Close()
		return fmt.Errorf("append metrics: %w", err)
	}
	return out.Close()
}
