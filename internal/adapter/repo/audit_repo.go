package repo

import (
	"context"

	"dreamboard/internal/domain"
	"dreamboard/internal/infra"
	"dreamboard/internal/sqlinline"
)

// AuditRepositoryPG appends to audit_logs.
type AuditRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(sql infra.SQLExecutor) *AuditRepositoryPG {
	return &AuditRepositoryPG{sql: sql}
}

func (r *AuditRepositoryPG) Record(ctx context.Context, e domain.AuditEntry) error {
	meta, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertAuditLog,
		string(e.Actor.Type), e.Actor.ID, e.Actor.IP, e.Actor.Country,
		e.Action, e.TargetType, e.TargetID, meta,
	)
	return err
}

var _ domain.AuditRepository = (*AuditRepositoryPG)(nil)
