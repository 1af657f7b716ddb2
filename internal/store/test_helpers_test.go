package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/pipeql/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// avgByCustomer is the pipeline for
// SELECT AVG(price) AS avgPrice FROM orders GROUP BY customerId.
func avgByCustomer(t *testing.T) ir.Pipeline {
	t.Helper()
	reduce, err := ir.NewReduceStage(ir.Field{Path: "customerId"}, ir.ReduceField{
		Name: "avgPrice", Op: ir.Avg{Of: ir.Field{Path: "price"}},
	})
	if err != nil {
		t.Fatalf("NewReduceStage() failed: %v", err)
	}
	return ir.NewPipeline(reduce)
}

// limitPipeline returns a single-stage pipeline LIMIT n.
func limitPipeline(n int64) ir.Pipeline {
	return ir.NewPipeline(ir.LimitStage{Count: n})
}

// ordersSchema describes the documents of the orders collection.
func ordersSchema() ir.JObject {
	return ir.MustObject(
		ir.P("customerId", ir.JString{}),
		ir.P("price", ir.JNumber{}),
	)
}
