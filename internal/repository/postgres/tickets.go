package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spkstore/checkout-go/internal/domain"
)

// CountIssuedForItem counts tickets already created for one line item. The
// paid transition uses it to issue exactly quantity-minus-existing tickets.
func (s *Store) CountIssuedForItem(ctx context.Context, lineItemID int64) (int, error) {
	const op = "postgresrepo.Store.CountIssuedForItem"

	db := s.handle(ctx)

	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM issued_tickets WHERE hold_item_id = $1`,
		lineItemID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return n, nil
}

func (s *Store) InsertIssuedTickets(ctx context.Context, tickets []domain.IssuedTicket) error {
	const op = "postgresrepo.Store.InsertIssuedTickets"

	if len(tickets) == 0 {
		return nil
	}

	db := s.handle(ctx)

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(
			`INSERT INTO issued_tickets(
                id, ticket_code, hold_item_id, user_id, ticket_id,
                valid_date, time_slot, status, created_at)
         	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, t.TicketCode, t.LineItemID, t.UserID, t.TicketID,
			t.ValidDate, t.TimeSlot, t.Status, t.CreatedAt,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

func (s *Store) ListIssuedByHold(ctx context.Context, holdID int64) ([]domain.IssuedTicket, error) {
	const op = "postgresrepo.Store.ListIssuedByHold"

	db := s.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT t.id, t.ticket_code, t.hold_item_id, t.user_id, t.ticket_id,
            	t.valid_date::text, t.time_slot, t.status, t.created_at
       	 FROM issued_tickets t
       	 JOIN hold_items i ON i.id = t.hold_item_id
      	 WHERE i.hold_id = $1
      	 ORDER BY t.created_at, t.ticket_code`,
		holdID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.IssuedTicket
	for rows.Next() {
		var t domain.IssuedTicket
		if err := rows.Scan(
			&t.ID, &t.TicketCode, &t.LineItemID, &t.UserID, &t.TicketID,
			&t.ValidDate, &t.TimeSlot, &t.Status, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}
