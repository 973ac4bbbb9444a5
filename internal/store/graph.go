package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/google/uuid"

	"mnemo/internal/logging"

	"mnemo/internal/memory"
)

// =============================================================================
// MEMORY GRAPH
// =============================================================================
// Relation triples become entity nodes plus one weighted edge. FindRelated
// walks the neighborhood outward with a bounded BFS so cold-tier retrieval
// can augment metadata without unbounded fan-out.

// EnsureNode returns the id of the entity node with the given content,
// creating it lazily if absent.
func (s *SQLiteStore) EnsureNode(ctx context.Context, content string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("entity node content must be non-empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM memory_nodes WHERE kind = 'entity' AND content = ?",
		content,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	id = uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO memory_nodes (id, kind, content) VALUES (?, 'entity', ?)",
		id, content,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create entity node %q: %v", content, err)
		return "", err
	}

	logging.StoreDebug("Created entity node %s for %q", id, content)
	return id, nil
}

// CreateEdge links two nodes with a typed, weighted relation.
func (s *SQLiteStore) CreateEdge(ctx context.Context, fromID, toID, relation string, weight float64) error {
	if fromID == "" || toID == "" || relation == "" {
		return fmt.Errorf("invalid edge: from/to/relation must be non-empty")
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("invalid edge weight: %v", weight)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_edges (from_id, to_id, relation, weight)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id, relation) DO UPDATE SET weight = excluded.weight`,
		fromID, toID, relation, weight,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store edge %s -[%s]-> %s: %v", fromID, relation, toID, err)
		return err
	}

	logging.StoreDebug("Stored edge %s -[%s]-> %s (weight=%.2f)", fromID, relation, toID, weight)
	return nil
}

// edge is an internal row shape for the BFS.
type edge struct {
	fromID   string
	toID     string
	relation string
	weight   float64
}

// neighborsLocked returns outgoing and incoming edges for a node. Caller
// must hold at least s.mu.RLock(); re-acquiring here could deadlock behind a
// pending writer.
func (s *SQLiteStore) neighborsLocked(ctx context.Context, id string, minWeight float64) ([]edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, relation, weight FROM memory_edges
		 WHERE (from_id = ? OR to_id = ?) AND weight >= ?`,
		id, id, minWeight,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.fromID, &e.toID, &e.relation, &e.weight); err != nil {
			logging.Get(logging.CategoryStore).Warn("Edge row scan failed: %v", err)
			continue
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// FindRelated walks the graph outward from a node up to maxHops, dropping
// edges below minWeight. Results carry the hop distance at which each node
// was first reached.
func (s *SQLiteStore) FindRelated(ctx context.Context, id string, maxHops int, minWeight float64) ([]memory.RelatedMemory, error) {
	timer := logging.StartTimer(logging.CategoryStore, "FindRelated")
	defer timer.Stop()

	if maxHops <= 0 {
		maxHops = 2
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type queueItem struct {
		id   string
		hops int
	}

	visited := map[string]bool{id: true}
	queue := []queueItem{{id: id, hops: 0}}
	var related []memory.RelatedMemory

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.hops >= maxHops {
			continue
		}

		edges, err := s.neighborsLocked(ctx, current.id, minWeight)
		if err != nil {
			return nil, err
		}

		for _, e := range edges {
			next := e.toID
			if next == current.id {
				next = e.fromID
			}
			if visited[next] {
				continue
			}
			visited[next] = true

			var content string
			if err := s.db.QueryRowContext(ctx,
				"SELECT content FROM memory_nodes WHERE id = ?", next,
			).Scan(&content); err != nil {
				continue // Dangling edge
			}

			related = append(related, memory.RelatedMemory{
				ID:       next,
				Content:  content,
				Relation: e.relation,
				Weight:   e.weight,
				Hops:     current.hops + 1,
			})
			queue = append(queue, queueItem{id: next, hops: current.hops + 1})
		}
	}

	logging.StoreDebug("FindRelated(%s): %d nodes within %d hops", id, len(related), maxHops)
	return related, nil
}
