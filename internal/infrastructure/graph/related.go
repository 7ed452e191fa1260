// Package graph maintains the diagram discovery graph in Neo4j: one node per
// diagram, one node per tag, and the shared-tag traversal behind related
// lookups. The whole feature is optional; with no URI configured nothing is
// indexed and lookups return empty.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
	MaxPool  int
}

type RelatedIndex struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewRelatedIndex connects and verifies the graph store. An empty URI means
// the feature is off: the constructor returns (nil, nil) and callers wire no
// index at all.
func NewRelatedIndex(ctx context.Context, cfg Config, logger *slog.Logger) (*RelatedIndex, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	user := cfg.User
	if user == "" {
		user = "neo4j"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxPool := cfg.MaxPool
	if maxPool <= 0 {
		maxPool = 50
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	index := &RelatedIndex{
		driver:   driver,
		database: cfg.Database,
		logger:   logger,
	}
	index.ensureConstraints(ctx)
	return index, nil
}

func (i *RelatedIndex) Close(ctx context.Context) error {
	if i == nil || i.driver == nil {
		return nil
	}
	return i.driver.Close(ctx)
}

// ensureConstraints is best-effort: a failure degrades merge performance but
// not correctness.
func (i *RelatedIndex) ensureConstraints(ctx context.Context) {
	session := i.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: i.database,
	})
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT diagram_id_unique IF NOT EXISTS FOR (d:Diagram) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT tag_name_unique IF NOT EXISTS FOR (t:Tag) REQUIRE t.name IS UNIQUE`,
	}
	for _, stmt := range stmts {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			i.logger.Warn("neo4j_constraint_init_failed", slog.String("error", err.Error()))
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

// IndexDiagram upserts the diagram node and rewrites its tag edges. Stale
// edges from a previous generation of the same chunk are removed so a
// re-index converges instead of accumulating.
func (i *RelatedIndex) IndexDiagram(ctx context.Context, d *domain.Diagram) error {
	if i == nil || i.driver == nil || d == nil || d.ID == "" {
		return nil
	}

	tags := make([]string, 0, len(d.Tags))
	for _, tag := range d.Tags {
		if trimmed := strings.ToLower(strings.TrimSpace(tag)); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}

	session := i.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: i.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (d:Diagram {id: $id})
SET d.title = $title, d.slug = $slug, d.synced_at = $synced_at
WITH d
OPTIONAL MATCH (d)-[stale:TAGGED]->(:Tag)
DELETE stale
WITH DISTINCT d
UNWIND $tags AS tag
MERGE (t:Tag {name: tag})
MERGE (d)-[:TAGGED]->(t)
`, map[string]any{
			"id":        d.ID,
			"title":     d.Title,
			"slug":      d.Slug,
			"tags":      tags,
			"synced_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("index diagram: %w", err)
	}
	return nil
}

// Related returns diagrams sharing the most tags with the given one.
func (i *RelatedIndex) Related(ctx context.Context, diagramID string, limit int) ([]domain.RelatedDiagram, error) {
	if i == nil || i.driver == nil {
		return nil, nil
	}

	session := i.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: i.database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Diagram {id: $id})-[:TAGGED]->(t:Tag)<-[:TAGGED]-(other:Diagram)
RETURN other.id AS id, other.title AS title, other.slug AS slug, count(DISTINCT t) AS shared_tags
ORDER BY shared_tags DESC, title ASC
LIMIT $limit
`, map[string]any{
			"id":    diagramID,
			"limit": limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("related diagrams: %w", err)
	}

	records, _ := result.([]*neo4j.Record)
	out := make([]domain.RelatedDiagram, 0, len(records))
	for _, rec := range records {
		related := domain.RelatedDiagram{}
		if v, ok := rec.Get("id"); ok {
			related.ID, _ = v.(string)
		}
		if v, ok := rec.Get("title"); ok {
			related.Title, _ = v.(string)
		}
		if v, ok := rec.Get("slug"); ok {
			related.Slug, _ = v.(string)
		}
		if v, ok := rec.Get("shared_tags"); ok {
			if count, isInt := v.(int64); isInt {
				related.SharedTags = int(count)
			}
		}
		if related.ID != "" {
			out = append(out, related)
		}
	}
	return out, nil
}
