package memos

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/validate"
)

const (
	cursorSep = "|"
	maxCursor = 80
)

// ParseListQuery reads status, owned, category, q, cursor, sort and limit.
// Values that fail validation are ignored rather than rejected.
func ParseListQuery(q url.Values, actorID string) store.MemoFilter {
	f := store.MemoFilter{
		Limit:     validate.ClampInt(q.Get("limit"), 1, store.MaxPageSize, store.DefaultPageSize),
		Ascending: q.Get("sort") == "asc",
	}

	if status, ok := validate.Query(q.Get("status"), maxStatus); ok && validate.IsStatus(status) {
		f.Status = status
	}
	if owned, ok := validate.Query(q.Get("owned"), 5); ok && (owned == "1" || owned == "true") {
		f.OwnerID = actorID
	}

	cf := ParseCountQuery(q)
	f.Category, f.Query = cf.Category, cf.Query

	if raw, ok := validate.Query(q.Get("cursor"), maxCursor); ok {
		f.Cursor, f.CursorID = parseCursor(raw)
	}
	return f
}

// parseCursor splits "<updated_at>|<id>". A bare timestamp is still accepted
// and pages on updated_at alone.
func parseCursor(raw string) (*time.Time, string) {
	stamp, id, _ := strings.Cut(raw, cursorSep)
	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, ""
	}
	ts = ts.UTC()
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return nil, ""
		}
	}
	return &ts, id
}

// ParseCountQuery reads the filters the counts endpoint shares with the list.
func ParseCountQuery(q url.Values) store.CountFilter {
	var f store.CountFilter
	if category, ok := validate.Query(q.Get("category"), maxCategory); ok && validate.IsCategory(category) {
		f.Category = category
	}
	if text, ok := validate.Query(q.Get("q"), maxTitle); ok {
		f.Query = text
	}
	return f
}

// NextCursor points at the last row when the page came back full: its
// updated_at and id, joined by "|".
func NextCursor(memos []models.Memo, limit int) *string {
	if len(memos) == 0 || len(memos) != limit {
		return nil
	}
	last := memos[len(memos)-1]
	c := last.UpdatedAt.UTC().Format(time.RFC3339Nano) + cursorSep + last.ID
	return &c
}
