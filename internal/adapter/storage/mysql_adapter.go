package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/rl1809/velocity/internal/core/domain"
)

const createOwnersTable = `
CREATE TABLE IF NOT EXISTS owners (
	id         CHAR(36)        NOT NULL PRIMARY KEY,
	company_id CHAR(36)        NOT NULL,
	name       VARCHAR(255)    NOT NULL,
	percentage DOUBLE          NOT NULL,
	revision   BIGINT UNSIGNED NOT NULL,
	updated_at TIMESTAMP       NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	INDEX idx_owners_company (company_id)
)`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createOwnersTable); err != nil {
		return oops.In("mysql").Wrapf(err, "create owners table")
	}
	return nil
}

// SaveOwner upserts the owner row. Columns are only overwritten when the
// incoming revision is newer than the stored one, so late deliveries from
// concurrent workers cannot roll a row back.
func (m *MySQLAdapter) SaveOwner(ctx context.Context, change domain.OwnerChange) error {
	o := change.Owner

	// Row alias syntax needs MySQL 8.0.19 or later.
	// revision must be assigned last: the IFs before it compare against the old value
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO owners (id, company_id, name, percentage, revision)
		VALUES (?, ?, ?, ?, ?) AS incoming
		ON DUPLICATE KEY UPDATE
			company_id = IF(incoming.revision > owners.revision, incoming.company_id, owners.company_id),
			name       = IF(incoming.revision > owners.revision, incoming.name, owners.name),
			percentage = IF(incoming.revision > owners.revision, incoming.percentage, owners.percentage),
			revision   = GREATEST(owners.revision, incoming.revision)`,
		o.ID.String(), o.CompanyID.String(), o.Name, o.Percentage, change.Revision,
	)
	if err != nil {
		return oops.In("mysql").
			With("owner_id", o.ID.String(), "revision", change.Revision).
			Wrapf(err, "upsert owner")
	}

	return nil
}

func (m *MySQLAdapter) LoadOwners(ctx context.Context) ([]domain.OwnerChange, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, company_id, name, percentage, revision
		FROM owners ORDER BY revision`)
	if err != nil {
		return nil, oops.In("mysql").Wrapf(err, "query owners")
	}
	defer rows.Close()

	var changes []domain.OwnerChange
	for rows.Next() {
		var (
			c             domain.OwnerChange
			id, companyID string
		)
		o := &c.Owner
		if err := rows.Scan(&id, &companyID, &o.Name, &o.Percentage, &c.Revision); err != nil {
			return nil, oops.In("mysql").Wrapf(err, "scan owner")
		}
		if o.ID, err = uuid.Parse(id); err != nil {
			return nil, oops.In("mysql").With("id", id).Wrapf(err, "parse owner id")
		}
		if o.CompanyID, err = uuid.Parse(companyID); err != nil {
			return nil, oops.In("mysql").With("company_id", companyID).Wrapf(err, "parse company id")
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("mysql").Wrapf(err, "iterate owners")
	}

	return changes, nil
}
