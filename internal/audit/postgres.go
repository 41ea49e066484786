package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

var _ Store = (*PGStore)(nil)

// PGStore persists audit entries in PostgreSQL. Snapshots are stored as
// JSONB; null snapshots stay null.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, entry *Entry) error {
	oldValues, err := marshalSnapshot(entry.OldValues)
	if err != nil {
		return err
	}
	newValues, err := marshalSnapshot(entry.NewValues)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into audit_log(id, user_id, action, table_name, record_id,
		   old_values, new_values, ip_address, user_agent, created_at)
		 values($1,nullif($2,''),$3,$4,nullif($5,''),$6,$7,$8,$9,$10)`,
		entry.ID, entry.UserID, string(entry.Action), entry.TableName,
		entry.RecordID, oldValues, newValues, entry.IPAddress, entry.UserAgent,
		entry.CreatedAt,
	)
	return err
}

func marshalSnapshot(values map[string]any) (any, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return data, nil
}
