package postgresrepo

import (
	"context"
	"fmt"

	"github.com/spkstore/checkout-go/internal/domain"
)

// AppendAudit inserts one reconciliation attempt into the append-only log.
// It always writes through the pool, never an ambient transaction: an audit
// row must survive the rollback it may be describing.
func (s *Store) AppendAudit(ctx context.Context, rec domain.AuditRecord) error {
	const op = "postgresrepo.Store.AppendAudit"

	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log(
            order_number, event_type, payload, success, error_message, processed_at)
       	 VALUES (NULLIF($1, ''), $2, $3, $4, NULLIF($5, ''), $6)`,
		rec.OrderNumber, rec.EventType, rec.Payload, rec.Success, rec.Error, rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
