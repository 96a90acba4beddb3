package engine

import (
	"context"
	"fmt"

	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
)

// runDiscovery enumerates reachable documents, upserts their records,
// ensures table templates exist, and drops documents that are no longer
// returned. With a pinned doc id only that document is tracked.
func (e *Engine) runDiscovery(ctx context.Context) error {
	log := common.TickLogger("discovery")

	var found []docs.DocumentInfo
	if pinned := e.cfg.Docs.DocID; pinned != "" {
		found = []docs.DocumentInfo{{DocID: pinned, Name: pinned}}
	} else {
		var err error
		found, err = e.backend.ListDocuments(ctx)
		if err != nil {
			return fmt.Errorf("document enumeration failed: %w", err)
		}
	}

	seen := make(map[string]bool, len(found))
	templated := 0
	for _, info := range found {
		seen[info.DocID] = true
		if err := e.store.UpsertDoc(info.DocID, info.Name); err != nil {
			log.Errorf("failed to upsert doc %s: %v", info.DocID, err)
			continue
		}
		// Template creation is batched to avoid rate-limiting the
		// document backend; the rest catch up on later runs.
		if templated >= e.cfg.Docs.TemplateBatch {
			continue
		}
		if err := e.backend.EnsureTemplate(ctx, info.DocID); err != nil {
			log.Warnf("template ensure failed for %s: %v", info.DocID, err)
			continue
		}
		templated++
	}

	tracked, err := e.store.ListDocs()
	if err != nil {
		return err
	}
	for _, doc := range tracked {
		if seen[doc.DocID] {
			continue
		}
		log.WithField("doc", doc.DocID).Info("document no longer reachable, dropping")
		if err := e.store.RemoveDoc(doc.DocID); err != nil {
			log.Errorf("failed to remove doc %s: %v", doc.DocID, err)
		}
	}
	return nil
}
