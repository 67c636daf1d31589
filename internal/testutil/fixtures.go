package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/system/indexes"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// WithChiURLParams adds chi URL parameters (key, value pairs) to the
// request context. Use this in handler tests that call a handler method
// directly instead of through the router.
func WithChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// EnsureIndexes builds every index the app expects, including the
// bookkeeping indexes of the given dataset collections.
func EnsureIndexes(t *testing.T, db *mongo.Database, datasets ...string) {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db, datasets, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
}

// SeedDataset inserts raw rows into a dataset collection as an importer
// would, stamping the given batch id.
func SeedDataset(t *testing.T, db *mongo.Database, dataset, batch string, rows ...bson.M) {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()

	docs := make([]any, len(rows))
	now := time.Now().UTC()
	for i, r := range rows {
		doc := bson.M{"import_batch": batch, "import_source": "fixture", "imported_at": now}
		for k, v := range r {
			doc[k] = v
		}
		docs[i] = doc
	}
	if len(docs) == 0 {
		return
	}
	if _, err := db.Collection(dataset).InsertMany(ctx, docs); err != nil {
		t.Fatalf("seed %s: %v", dataset, err)
	}
}
