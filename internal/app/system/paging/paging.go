// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the number of rows shown in paged admin lists.
const PageSize = 25

// LimitPlusOne returns PageSize+1 as int64 for look-ahead pagination
// (fetch one extra document to detect hasNext).
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	n, err := strconv.Atoi(query.Get(r, "start"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Result holds the output of TrimPage.
type Result struct {
	HasPrev bool
	HasNext bool
}

// TrimPage trims a slice fetched with LimitPlusOne and reports whether
// neighbouring pages exist.
//
// Going backwards (before != ""), the extra row sits at the front and a
// next page always exists. Otherwise the extra row sits at the end and a
// previous page exists only when after != "".
func TrimPage[T any](rows *[]T, before, after string) Result {
	var res Result
	n := len(*rows)
	if before != "" {
		if n > PageSize {
			*rows = (*rows)[1:]
			res.HasPrev = true
		}
		res.HasNext = true
		return res
	}
	if n > PageSize {
		*rows = (*rows)[:PageSize]
		res.HasNext = true
	}
	res.HasPrev = after != ""
	return res
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start     int // 1-based start index (0 if no results)
	End       int // 1-based end index (0 if no results)
	PrevStart int
	NextStart int
}

// ComputeRange calculates display range values given the current start index
// and number of items shown.
func ComputeRange(start, shown int) Range {
	if shown == 0 {
		return Range{PrevStart: 1, NextStart: 1}
	}
	prev := start - PageSize
	if prev < 1 {
		prev = 1
	}
	return Range{
		Start:     start,
		End:       start + shown - 1,
		PrevStart: prev,
		NextStart: start + shown,
	}
}

// Keyset pages a collection newest-first by _id. ObjectIDs grow with
// insertion time, so no separate sort field is needed.
type Keyset struct {
	Backward bool
	Cursor   primitive.ObjectID
}

// NewestFirst decodes the before/after cursors. An unparsable cursor is
// ignored and yields the first page.
func NewestFirst(before, after string) Keyset {
	if before != "" {
		if id, err := primitive.ObjectIDFromHex(before); err == nil {
			return Keyset{Backward: true, Cursor: id}
		}
		return Keyset{}
	}
	if id, err := primitive.ObjectIDFromHex(after); err == nil {
		return Keyset{Cursor: id}
	}
	return Keyset{}
}

// Filter returns the _id window for the page, or an empty filter on the
// first page.
func (k Keyset) Filter() bson.M {
	if k.Cursor.IsZero() {
		return bson.M{}
	}
	if k.Backward {
		return bson.M{"_id": bson.M{"$gt": k.Cursor}}
	}
	return bson.M{"_id": bson.M{"$lt": k.Cursor}}
}

// FindOptions sorts toward the cursor and fetches one extra row.
func (k Keyset) FindOptions() *options.FindOptions {
	dir := -1
	if k.Backward {
		dir = 1
	}
	return options.Find().
		SetSort(bson.D{{Key: "_id", Value: dir}}).
		SetLimit(LimitPlusOne())
}

// Reverse reverses a slice in place. Use this after fetching results
// when paging backwards to restore the correct display order.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// Cursors returns the before/after cursor strings for the first and last
// rows of a page.
func Cursors[T any](rows []T, idFn func(T) primitive.ObjectID) (prev, next string) {
	if len(rows) == 0 {
		return "", ""
	}
	return idFn(rows[0]).Hex(), idFn(rows[len(rows)-1]).Hex()
}
