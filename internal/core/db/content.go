package db

import (
	"context"
)

// ContentStatusStore reads and writes per-content publishable flags.
type ContentStatusStore struct {
	queries *Queries
}

// NewContentStatusStore creates a store using the named queries.
func NewContentStatusStore(queries *Queries) *ContentStatusStore {
	return &ContentStatusStore{queries: queries}
}

// PublishableFlags returns the flag of each known content id.
// Unknown ids are absent from the result.
func (s *ContentStatusStore) PublishableFlags(ctx context.Context, contentIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(contentIDs))
	if len(contentIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ContentID int64  `db:"content_id"`
		Flag      string `db:"publishable_flag"`
	}
	if err := s.queries.SelectIn(ctx, "list-publishable-flags", &rows, contentIDs); err != nil {
		return nil, unavailable("list publishable flags", err)
	}
	for _, r := range rows {
		out[r.ContentID] = r.Flag
	}
	return out, nil
}

// SetPublishableFlag records the flag for one content id.
func (s *ContentStatusStore) SetPublishableFlag(ctx context.Context, contentID int64, flag string) error {
	if _, err := s.queries.Exec(ctx, "upsert-publishable-flag", contentID, flag); err != nil {
		return unavailable("set publishable flag", err)
	}
	return nil
}
