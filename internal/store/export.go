package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSONL writes a run's samples as JSON lines, one per tick.
func (s *SQLiteRunStore) ExportJSONL(ctx context.Context, runID string, w io.Writer) error {
	samples, err := s.Samples(ctx, runID)
	if err != nil {
		return err
	}
	return WriteSamplesJSONL(w, samples)
}

// WriteSamplesJSONL encodes samples as JSON lines.
func WriteSamplesJSONL(w io.Writer, samples []Sample) error {
	enc := json.NewEncoder(w)
	for _, sample := range samples {
		if err := enc.Encode(sample); err != nil {
			return fmt.Errorf("failed to write sample %d: %w", sample.Tick, err)
		}
	}
	return nil
}
