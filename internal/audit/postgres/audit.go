package postgres

import (
	"context"

	"github.com/frahmantamala/medichat/internal/audit"
	auditDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/audit"
	"github.com/jmoiron/sqlx"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) audit.RepositoryAPI {
	return &AuditRepository{db: db}
}

const insertAuditLog = `
INSERT INTO audit_logs (id, occurred_at, user_id, user_role, action, resource, allowed, context, ip_address, user_agent)
VALUES (:id, :occurred_at, :user_id, :user_role, :action, :resource, :allowed, :context, :ip_address, :user_agent)
`

func (r *AuditRepository) Insert(ctx context.Context, log *auditDatamodel.Log) error {
	_, err := r.db.NamedExecContext(ctx, insertAuditLog, log)
	return err
}

func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*auditDatamodel.Log, error) {
	query := r.db.Rebind(`
SELECT id, occurred_at, user_id, user_role, action, resource, allowed, context, ip_address, user_agent
FROM audit_logs
WHERE user_id = ?
ORDER BY occurred_at DESC
LIMIT ?
`)
	var logs []*auditDatamodel.Log
	if err := r.db.SelectContext(ctx, &logs, query, userID, limit); err != nil {
		return nil, err
	}
	return logs, nil
}
