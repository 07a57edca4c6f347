package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/epigraph-ai/epigraph-backend/internal/domain"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/neo4jdb"
)

// BucketCounts holds, for one relationship type, the number of edges whose
// endpoint-average grounding strength fell into each role bucket.
type BucketCounts struct {
	WellSupported int64
	Contested     int64
	Outdated      int64
	Refuted       int64
	Total         int64
}

func (b BucketCounts) ByRole() map[string]int64 {
	return map[string]int64{
		domain.RoleWellSupported: b.WellSupported,
		domain.RoleContested:     b.Contested,
		domain.RoleOutdated:      b.Outdated,
		domain.RoleRefuted:       b.Refuted,
	}
}

// Bucket boundaries over [0,1], fixed and non-overlapping:
// refuted [0,0.25), outdated [0.25,0.5), contested [0.5,0.75),
// well_supported [0.75,1.0].
const groundingHistogramCypher = `
MATCH (a:Concept)-[r:RELATES]->(b:Concept)
WHERE r.type IS NOT NULL
WITH r.type AS type,
     (coalesce(a.grounding_strength, 0.0) + coalesce(b.grounding_strength, 0.0)) / 2.0 AS g
RETURN type,
       sum(CASE WHEN g >= 0.75 THEN 1 ELSE 0 END) AS well_supported,
       sum(CASE WHEN g >= 0.5 AND g < 0.75 THEN 1 ELSE 0 END) AS contested,
       sum(CASE WHEN g >= 0.25 AND g < 0.5 THEN 1 ELSE 0 END) AS outdated,
       sum(CASE WHEN g < 0.25 THEN 1 ELSE 0 END) AS refuted,
       count(*) AS total
`

// GroundingHistogram aggregates evidentiary support for every relationship
// type in one traversal: cost is O(edges) regardless of vocabulary size.
// Read-only against the graph store.
func GroundingHistogram(ctx context.Context, client *neo4jdb.Client, log *logger.Logger) (map[string]BucketCounts, error) {
	if client == nil || client.Driver == nil {
		return map[string]BucketCounts{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	raw, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, groundingHistogramCypher, nil)
		if err != nil {
			return nil, err
		}

		out := map[string]BucketCounts{}
		for res.Next(ctx) {
			rec := res.Record()
			name, ok := recordString(rec, "type")
			if !ok || name == "" {
				continue
			}
			out[name] = BucketCounts{
				WellSupported: recordInt(rec, "well_supported"),
				Contested:     recordInt(rec, "contested"),
				Outdated:      recordInt(rec, "outdated"),
				Refuted:       recordInt(rec, "refuted"),
				Total:         recordInt(rec, "total"),
			}
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j grounding histogram: %w", err)
	}

	hist, ok := raw.(map[string]BucketCounts)
	if !ok {
		return map[string]BucketCounts{}, nil
	}
	if log != nil {
		log.Debug("Collected grounding histogram", "types", len(hist))
	}
	return hist, nil
}

// HistogramSource adapts the graph client to the narrow read surface the
// validator consumes.
type HistogramSource struct {
	Client *neo4jdb.Client
	Log    *logger.Logger
}

func (s HistogramSource) GroundingHistogram(ctx context.Context) (map[string]BucketCounts, error) {
	return GroundingHistogram(ctx, s.Client, s.Log)
}

// EdgeCountByType returns the current number of edges carrying each type.
func EdgeCountByType(ctx context.Context, client *neo4jdb.Client) (map[string]int64, error) {
	if client == nil || client.Driver == nil {
		return map[string]int64{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	raw, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:Concept)-[r:RELATES]->(:Concept)
WHERE r.type IS NOT NULL
RETURN r.type AS type, count(*) AS total
`, nil)
		if err != nil {
			return nil, err
		}
		out := map[string]int64{}
		for res.Next(ctx) {
			rec := res.Record()
			name, ok := recordString(rec, "type")
			if !ok || name == "" {
				continue
			}
			out[name] = recordInt(rec, "total")
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j edge counts: %w", err)
	}

	counts, ok := raw.(map[string]int64)
	if !ok {
		return map[string]int64{}, nil
	}
	return counts, nil
}

func recordString(rec *neo4j.Record, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func recordInt(rec *neo4j.Record, key string) int64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
