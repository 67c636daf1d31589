// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
datasets names the dataset collections served by the chart catalog.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, datasets []string, log *zap.Logger) error {
	var problems []string

	if err := ensureUsers(ctx, db, log); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureMessages(ctx, db, log); err != nil {
		problems = append(problems, "messages: "+err.Error())
	}
	if err := ensureAuditEvents(ctx, db, log); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}
	for _, name := range datasets {
		if err := ensureDataset(ctx, db.Collection(name), log); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

// isDuplicateKeyErr detects E11000 across server vendors.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}

func listIndexes(ctx context.Context, coll *mongo.Collection, log *zap.Logger) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	existing := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			log.Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing, cur.Err()
}

// ensureIndexSet creates missing indexes, renames same-key indexes to the
// desired name, and rebuilds indexes whose uniqueness differs.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel, log *zap.Logger) error {
	existing, err := listIndexes(ctx, coll, log)
	if err != nil {
		// A collection that does not exist yet lists no indexes on some
		// servers and errors on others; create everything either way.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		fields := []zap.Field{
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
		}

		if ex, ok := existing[sig]; ok {
			if sameBoolPtr(unique, ex.Unique) && (name == "" || ex.Name == name) {
				log.Debug("reusing existing index", fields...)
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
			log.Info("dropped index for rebuild", append(fields, zap.String("old_name", ex.Name))...)
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && unique != nil && *unique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			continue
		}
		log.Info("index ensured", append(fields,
			zap.Bool("unique", unique != nil && *unique),
			zap.Duration("took", time.Since(start)))...)
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Per-collection index sets                                                  */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetName("uniq_users_email_ci").SetUnique(true),
		},
	}, log)
}

func ensureMessages(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("messages"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "read", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_messages_read_id"),
		},
	}, log)
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_ts"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_cat_type_ts"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor_ts"),
		},
	}, log)
}

// ensureDataset indexes the bookkeeping fields the importer writes so
// batch listing and batch deletion avoid collection scans.
func ensureDataset(ctx context.Context, coll *mongo.Collection, log *zap.Logger) error {
	return ensureIndexSet(ctx, coll, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "import_batch", Value: 1}},
			Options: options.Index().SetName("idx_" + coll.Name() + "_batch"),
		},
		{
			Keys:    bson.D{{Key: "imported_at", Value: -1}},
			Options: options.Index().SetName("idx_" + coll.Name() + "_imported_at"),
		},
	}, log)
}
