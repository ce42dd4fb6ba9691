package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/logger"
)

// Inconsistency reasons.
const (
	ReasonMissingChunks = "missing_chunks"
	ReasonMixedVersions = "mixed_versions"
	ReasonChunkCount    = "chunk_count_mismatch"
)

// Audit compares both stores. Each document is checked under its lock so
// that in-flight ingestions are not reported as inconsistent.
func (c *IngestionCoordinator) Audit(ctx context.Context) (*domain.AuditReport, error) {
	logger.Section("Audit")

	ids, err := c.metadata.Find(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	indexed, err := c.vectors.DocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexed documents: %w", err)
	}

	report := &domain.AuditReport{Documents: len(ids)}

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	for _, id := range indexed {
		if known[id] {
			continue
		}
		orphan, err := c.isOrphan(ctx, id)
		if err != nil {
			return nil, err
		}
		if orphan {
			logger.Warn("orphan chunks for unknown document %s", id)
			c.metrics.ObserveInconsistency("orphan")
			report.Orphans = append(report.Orphans, id)
		}
	}
	sort.Strings(report.Orphans)

	for _, id := range ids {
		inc, err := c.checkDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		if inc != nil {
			logger.Warn("document %s: %s: %v (chunks=%d stale=%d)", id, inc.Reason, domain.ErrInconsistentState, inc.Chunks, inc.StaleChunks)
			c.metrics.ObserveInconsistency(inc.Reason)
			report.Inconsistent = append(report.Inconsistent, *inc)
		}
	}

	logger.Info("audit: %d documents, %d orphans, %d inconsistent", report.Documents, len(report.Orphans), len(report.Inconsistent))
	return report, nil
}

func (c *IngestionCoordinator) isOrphan(ctx context.Context, id string) (bool, error) {
	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	_, err = c.metadata.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", id, err)
	}
	return false, nil
}

// checkDocument returns nil when the document's chunks match its record.
// The caller must not hold the lock for id.
func (c *IngestionCoordinator) checkDocument(ctx context.Context, id string) (*domain.Inconsistency, error) {
	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return c.checkLocked(ctx, id)
}

func (c *IngestionCoordinator) checkLocked(ctx context.Context, id string) (*domain.Inconsistency, error) {
	doc, err := c.metadata.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	chunks, err := c.vectors.ListChunks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list chunks of %s: %w", id, err)
	}

	stale := 0
	for _, ch := range chunks {
		if ch.Version != doc.Version {
			stale++
		}
	}

	inc := &domain.Inconsistency{
		DocumentID:  id,
		Version:     doc.Version,
		Chunks:      len(chunks),
		StaleChunks: stale,
	}
	switch {
	case doc.HasText() && len(chunks) == 0:
		inc.Reason = ReasonMissingChunks
	case stale > 0:
		inc.Reason = ReasonMixedVersions
	case len(chunks) != doc.ChunkCount:
		inc.Reason = ReasonChunkCount
	default:
		return nil, nil
	}
	return inc, nil
}

// Repair deletes orphaned chunks and re-ingests inconsistent documents from
// their stored text. Every item is re-checked under its lock first, so a
// stale report never destroys data written since the audit.
func (c *IngestionCoordinator) Repair(ctx context.Context, report *domain.AuditReport) (*domain.RepairResult, error) {
	logger.Section("Repair")
	defer logger.Timed("repair")()
	result := &domain.RepairResult{}

	for _, id := range report.Orphans {
		deleted, err := c.repairOrphan(ctx, id)
		if err != nil {
			return result, err
		}
		if deleted {
			result.OrphansDeleted = append(result.OrphansDeleted, id)
		}
	}

	for _, inc := range report.Inconsistent {
		res, err := c.repairDocument(ctx, inc.DocumentID)
		if err != nil && ctx.Err() != nil {
			return result, err
		}
		if res != nil {
			result.Reingested = append(result.Reingested, *res)
		}
	}

	return result, nil
}

func (c *IngestionCoordinator) repairOrphan(ctx context.Context, id string) (bool, error) {
	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	_, err = c.metadata.Get(ctx, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("read %s: %w", id, err)
	}
	if err := c.vectors.DeleteByDocumentID(ctx, id); err != nil {
		return false, fmt.Errorf("delete orphan chunks of %s: %w", id, err)
	}
	logger.Info("deleted orphan chunks of %s", id)
	return true, nil
}

func (c *IngestionCoordinator) repairDocument(ctx context.Context, id string) (*domain.IngestResult, error) {
	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inc, err := c.checkLocked(ctx, id)
	if err != nil || inc == nil {
		return nil, err
	}
	doc, err := c.metadata.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}

	res, err := c.ingestLocked(ctx, id, domain.IngestRequest{
		IDHint:    id,
		Text:      doc.Text,
		Fields:    doc.Fields,
		Source:    doc.Source,
		NoExtract: true,
	})
	if err != nil {
		logger.Error("repair %s: %v", id, err)
		return &domain.IngestResult{DocumentID: id, Err: err}, err
	}
	logger.Info("re-ingested %s at version %d", id, res.Version)
	return res, nil
}
