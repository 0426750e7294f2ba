package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tareqmamari/elasticsearch-mcp-server/internal/capability"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/client"
	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/model"
)

// Backing-index stats batching
const (
	DefaultBatchSize        = 50
	DefaultBatchConcurrency = 4
)

// GetDataStreams returns the data streams matching pattern with stats for
// every backing index. A backing index whose stats batch failed is kept with
// Found=false.
func (a *API) GetDataStreams(ctx context.Context, pattern string) ([]model.DataStreamRecord, error) {
	if !a.caps.Has(capability.DataStreams) {
		return nil, apperrors.NewCapabilityGap(string(capability.DataStreams), a.info.String())
	}
	if pattern == "" {
		pattern = "*"
	}
	path, err := targetPath("/_data_stream", pattern, "")
	if err != nil {
		return nil, err
	}

	body, err := a.do(ctx, a.opts.RequestTimeout, "get data streams", &client.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeResourceNotFound) {
			return []model.DataStreamRecord{}, nil
		}
		return nil, err
	}

	var resp model.DataStreamsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewProtocol("failed to decode _data_stream").WithCause(err)
	}

	var names []string
	for _, row := range resp.DataStreams {
		names = append(names, row.BackingIndexNames()...)
	}
	stats := a.ListBackingIndexStats(ctx, names)

	records := make([]model.DataStreamRecord, len(resp.DataStreams))
	for i, row := range resp.DataStreams {
		records[i] = buildRecord(row, stats)
	}
	return records, nil
}

func buildRecord(row model.DataStreamRow, stats map[string]model.BackingIndex) model.DataStreamRecord {
	backing := make([]model.BackingIndex, len(row.Indices))
	dated := true
	for i, name := range row.BackingIndexNames() {
		if s, ok := stats[name]; ok {
			backing[i] = s
		} else {
			backing[i] = model.BackingIndex{Name: name}
		}
		if backing[i].CreationDate.IsZero() {
			dated = false
		}
	}
	// The API lists backing indices by generation; creation dates refine
	// that order only when every index has one.
	if dated {
		sortByCreation(backing)
	}

	return model.DataStreamRecord{
		Name:             row.Name,
		TimestampField:   row.TimestampField.Name,
		BackingIndices:   backing,
		Generation:       row.Generation,
		Status:           strings.ToLower(row.Status),
		ILMPolicy:        row.ILMPolicy,
		Template:         row.Template,
		Hidden:           row.Hidden,
		System:           row.System,
		LifecycleManaged: row.Lifecycle.Managed(),
	}
}

func sortByCreation(backing []model.BackingIndex) {
	sort.SliceStable(backing, func(i, j int) bool {
		return backing[i].CreationDate.Before(backing[j].CreationDate)
	})
}

// ListBackingIndexStats fetches _cat/indices rows for names in concurrent
// batches. A failed batch is logged and skipped; its names are absent from
// the result.
func (a *API) ListBackingIndexStats(ctx context.Context, names []string) map[string]model.BackingIndex {
	out := make(map[string]model.BackingIndex, len(names))
	if len(names) == 0 {
		return out
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.BatchConcurrency)

	for start := 0; start < len(names); start += a.opts.BatchSize {
		batch := names[start:min(start+a.opts.BatchSize, len(names))]
		g.Go(func() error {
			rows, err := a.catBatch(gctx, batch)
			if err != nil {
				a.logger.Warn("Backing index stats batch failed, skipping",
					zap.Int("batch_size", len(batch)),
					zap.String("first_index", batch[0]),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, row := range rows {
				rec := row.Record()
				out[rec.Name] = model.BackingIndex{
					Name:           rec.Name,
					Health:         rec.Health,
					Status:         rec.Status,
					DocCount:       rec.DocCount,
					StoreSizeBytes: rec.StoreSizeBytes,
					CreationDate:   rec.CreationDate,
					Found:          true,
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (a *API) catBatch(ctx context.Context, names []string) ([]model.CatIndexRow, error) {
	query := a.catIndicesQuery()
	query["expand_wildcards"] = "all"
	body, err := a.do(ctx, a.opts.RequestTimeout, "backing index stats", &client.Request{
		Method: http.MethodGet,
		Path:   "/_cat/indices/" + strings.Join(names, ","),
		Query:  query,
	})
	if err != nil {
		return nil, err
	}
	var rows []model.CatIndexRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.NewProtocol("failed to decode _cat/indices").WithCause(err)
	}
	return rows, nil
}
