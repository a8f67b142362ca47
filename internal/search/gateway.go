// Package search is the query-then-authorize gateway over the external
// full-text index. The index ranks by relevance but has no notion of
// participants, so callers MUST post-filter results to conversations the
// requesting user belongs to. The index is never trusted to enforce access.
package search

import (
	"context"
	"log"
	"sort"

	"github.com/google/uuid"

	"converso-backend/internal/store"
)

// Storage is the slice of the store the gateway needs: id resolution for
// index hits and the linear-scan fallback.
type Storage interface {
	MessagesByIDs(ctx context.Context, ids []uuid.UUID) ([]store.MessageWithAuthor, error)
	SearchMessages(ctx context.Context, term string, limit int) ([]store.MessageWithAuthor, error)
}

// Gateway searches the external index first and degrades to a substring scan
// over the store when the index is absent or failing.
type Gateway struct {
	index Index // nil when no index is configured
	db    Storage
}

func NewGateway(index Index, db Storage) *Gateway {
	return &Gateway{index: index, db: db}
}

// Search returns matching messages, newest first. Index failures are absorbed:
// the caller always gets the fallback scan rather than an error surface.
func (g *Gateway) Search(ctx context.Context, term string, limit int) ([]store.MessageWithAuthor, error) {
	if g.index != nil {
		ids, err := g.index.Search(ctx, term, limit)
		if err == nil {
			items, err := g.db.MessagesByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			sort.Slice(items, func(i, j int) bool {
				return items[i].Message.Seq > items[j].Message.Seq
			})
			return items, nil
		}
		log.Printf("WARN [SearchGateway] index query failed, using fallback scan: %v", err)
	}
	return g.db.SearchMessages(ctx, term, limit)
}

// IndexMessage pushes a freshly appended message to the external index.
// Best-effort: failures are logged, never surfaced, and never block the send
// path.
func (g *Gateway) IndexMessage(ctx context.Context, doc Document) {
	if g.index == nil {
		return
	}
	if err := g.index.IndexMessage(ctx, doc); err != nil {
		log.Printf("WARN [SearchGateway] indexing message %s failed: %v", doc.ID, err)
	}
}
