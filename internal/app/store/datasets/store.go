// internal/app/store/datasets/store.go
package datasetstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Bookkeeping fields added to every imported document. They are never
// returned as record columns.
const (
	FieldBatch      = "import_batch"
	FieldSource     = "import_source"
	FieldImportedAt = "imported_at"
)

// insertChunk caps the documents sent in one InsertMany call.
const insertChunk = 1000

// ErrNoRecords is returned when an import carries no rows.
var ErrNoRecords = errors.New("datasetstore: no records to import")

// Store reads and writes dataset collections. Each dataset is stored in a
// collection of the same name.
type Store struct {
	db *mongo.Database
}

// New creates a dataset store.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// FetchPage returns rows [offset, offset+limit) of a dataset ordered by
// _id, projected to columns (all columns when empty).
func (s *Store) FetchPage(ctx context.Context, dataset string, columns []string, offset, limit int) ([]stats.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	if len(columns) > 0 {
		proj := bson.M{"_id": 0}
		for _, c := range columns {
			proj[c] = 1
		}
		opts.SetProjection(proj)
	}

	cur, err := s.db.Collection(dataset).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]stats.Record, 0, limit)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, toRecord(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// toRecord strips bookkeeping fields and converts BSON-specific scalars
// into plain Go values the normalizer understands.
func toRecord(doc bson.M) stats.Record {
	rec := make(stats.Record, len(doc))
	for k, v := range doc {
		switch k {
		case "_id", FieldBatch, FieldSource, FieldImportedAt:
			continue
		}
		rec[k] = plainValue(v)
	}
	return rec
}

func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return t.String()
		}
		return f
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	default:
		return v
	}
}

// Batch summarizes one import.
type Batch struct {
	ID         string    `bson:"_id" json:"id"`
	Source     string    `bson:"source" json:"source"`
	Rows       int       `bson:"rows" json:"rows"`
	ImportedAt time.Time `bson:"imported_at" json:"importedAt"`
}

// Insert appends records to a dataset under a new batch id and returns it.
func (s *Store) Insert(ctx context.Context, dataset string, records []stats.Record, source string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	batch := uuid.NewString()
	now := time.Now().UTC()
	coll := s.db.Collection(dataset)

	for start := 0; start < len(records); start += insertChunk {
		end := min(start+insertChunk, len(records))
		docs := make([]any, 0, end-start)
		for _, rec := range records[start:end] {
			doc := bson.M{
				FieldBatch:      batch,
				FieldSource:     source,
				FieldImportedAt: now,
			}
			for k, v := range rec {
				if k == "_id" || k == FieldBatch || k == FieldSource || k == FieldImportedAt {
					continue
				}
				doc[k] = v
			}
			docs = append(docs, doc)
		}
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			return "", fmt.Errorf("insert %s batch %s: %w", dataset, batch, err)
		}
	}
	return batch, nil
}

// Replace removes every row of a dataset and inserts records as a single
// new batch. The two steps are not atomic.
func (s *Store) Replace(ctx context.Context, dataset string, records []stats.Record, source string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	if _, err := s.db.Collection(dataset).DeleteMany(ctx, bson.D{}); err != nil {
		return "", fmt.Errorf("clear %s: %w", dataset, err)
	}
	return s.Insert(ctx, dataset, records, source)
}

// DeleteBatch removes every row written by one import.
func (s *Store) DeleteBatch(ctx context.Context, dataset, batch string) (int64, error) {
	res, err := s.db.Collection(dataset).DeleteMany(ctx, bson.M{FieldBatch: batch})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Batches lists the imports of a dataset, newest first. Rows written
// outside the importer have no batch and are not listed.
func (s *Store) Batches(ctx context.Context, dataset string) ([]Batch, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{FieldBatch: bson.M{"$exists": true}}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$" + FieldBatch,
			"source":      bson.M{"$first": "$" + FieldSource},
			"rows":        bson.M{"$sum": 1},
			"imported_at": bson.M{"$max": "$" + FieldImportedAt},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "imported_at", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := s.db.Collection(dataset).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Batch
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of rows in a dataset.
func (s *Store) Count(ctx context.Context, dataset string) (int64, error) {
	return s.db.Collection(dataset).CountDocuments(ctx, bson.D{})
}
