package service

import (
	"context"
	"errors"
	"fmt"

	"postsync/internal/core/domain"
	"postsync/internal/csvcodec"
	"postsync/internal/logger"
	"postsync/internal/merge"
	"postsync/internal/metrics"
)

const sheetsNotConfigured = "Spreadsheet sink not configured"

// persist normalizes posts, merges them into the stored dataset and writes
// the result to the primary sink, then to the spreadsheet when enabled.
func (o *Orchestrator) persist(ctx context.Context, log logger.Logger, posts []domain.RawPost) (domain.PersistResult, error) {
	rows := o.normalizer.Posts(posts)
	result := domain.PersistResult{Processed: len(rows)}

	existing := o.readExisting(ctx, log)
	schema, existingRows, err := csvcodec.Decode(existing, o.cfg.Schema)
	if err != nil {
		log.Error("Stored dataset is not a readable CSV, refusing to overwrite it", logger.Error(err))
		return result, fmt.Errorf("decode stored dataset: %w", err)
	}

	merged := merge.Merge(existingRows, rows, merge.PostURL)
	result.Inserted = merged.Inserted
	result.Skipped = merged.Skipped + merged.MissingKey
	o.metrics.RowsMerged(result.Inserted, result.Skipped)

	log.Info("Merged rows",
		logger.String("schema", schema.Name()),
		logger.Int("existing", len(existingRows)),
		logger.Int("considered", merged.Considered),
		logger.Int("inserted", merged.Inserted),
		logger.Int("duplicates", merged.Skipped),
		logger.Int("missing_url", merged.MissingKey),
	)

	text := csvcodec.AppendMerge(existing, schema, merged.Added)
	url, usedFallback, err := o.writeArtifact(ctx, log, []byte(text))
	if err != nil {
		return result, err
	}
	result.ArtifactURL = url
	result.UsedFallback = usedFallback

	result.SheetsUpdated, result.SheetsMessage = o.updateSpreadsheet(ctx, log, rows)
	return result, nil
}

// readExisting returns the stored CSV from the authoritative sink.
// A missing or unreadable artifact reads as empty.
func (o *Orchestrator) readExisting(ctx context.Context, log logger.Logger) string {
	var (
		data   []byte
		err    error
		source string
	)
	if o.objects != nil {
		source = metrics.SinkObjectStore
		data, err = o.objects.Download(ctx, o.cfg.ObjectKey)
	} else {
		source = metrics.SinkLocalFile
		data, err = o.files.Read(ctx)
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Info("No stored dataset yet", logger.String("sink", source))
		return ""
	case err != nil:
		log.Warn("Failed to read stored dataset, treating it as empty",
			logger.String("sink", source),
			logger.Error(err),
		)
		return ""
	}
	return string(data)
}

// writeArtifact writes to object storage, falling back to the local file.
func (o *Orchestrator) writeArtifact(ctx context.Context, log logger.Logger, data []byte) (string, bool, error) {
	var primaryErr error
	if o.objects != nil {
		primaryErr = o.objects.Upload(ctx, o.cfg.ObjectKey, data, csvcodec.ContentType)
		o.metrics.SinkWrite(metrics.SinkObjectStore, primaryErr)
		if primaryErr == nil {
			return o.objects.PublicURL(o.cfg.ObjectKey), false, nil
		}
		log.Warn("Object storage upload failed, saving locally", logger.Error(primaryErr))
	}

	err := o.files.Write(ctx, data)
	o.metrics.SinkWrite(metrics.SinkLocalFile, err)
	if err != nil {
		log.Error("Local write failed", logger.Error(err))
		return "", false, fmt.Errorf("%w: %w", domain.ErrSinkWrite, errors.Join(primaryErr, err))
	}
	return o.files.URL(), o.objects != nil, nil
}

// updateSpreadsheet merges rows into the spreadsheet by post URL.
// Failures are reported, never returned.
func (o *Orchestrator) updateSpreadsheet(ctx context.Context, log logger.Logger, rows []domain.Row) (bool, string) {
	if o.sheet == nil {
		return false, sheetsNotConfigured
	}

	inserted, err := o.mergeSpreadsheet(ctx, rows)
	o.metrics.SinkWrite(metrics.SinkSpreadsheet, err)
	if err != nil {
		log.Warn("Failed to update spreadsheet", logger.Error(err))
		return false, fmt.Sprintf("Spreadsheet update failed: %v", err)
	}

	log.Info("Spreadsheet updated", logger.Int("inserted", inserted))
	return true, fmt.Sprintf("Spreadsheet updated! %d new rows", inserted)
}

// mergeSpreadsheet keys rows by the post URL column of the sheet's own
// header, so sheets using either schema merge correctly. An empty sheet
// gets the compact schema.
func (o *Orchestrator) mergeSpreadsheet(ctx context.Context, rows []domain.Row) (int, error) {
	values, err := o.sheet.ReadRange(ctx)
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}

	schema := csvcodec.Compact
	var existing [][]string
	if len(values) > 0 {
		if schema, err = csvcodec.DetectSchema(values[0]); err != nil {
			return 0, fmt.Errorf("spreadsheet header: %w", err)
		}
		existing = values[1:]
	}

	header := schema.Header()
	key, err := merge.ColumnKey(header, csvcodec.KeyColumn)
	if err != nil {
		return 0, err
	}

	candidates := make([][]string, len(rows))
	for i, r := range rows {
		candidates[i] = schema.Values(r)
	}

	merged := merge.Merge(existing, candidates, key)
	out := make([][]string, 0, len(merged.Rows)+1)
	out = append(out, header)
	out = append(out, merged.Rows...)

	if err := o.sheet.WriteRange(ctx, out); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrSinkWrite, err)
	}
	return merged.Inserted, nil
}
