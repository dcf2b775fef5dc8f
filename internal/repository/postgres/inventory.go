package postgresrepo

import (
	"context"
	"fmt"

	"github.com/spkstore/checkout-go/internal/domain"
	"github.com/spkstore/checkout-go/internal/optimistic"
	"github.com/spkstore/checkout-go/internal/repository"
)

// VariantStock returns the current stock counters for a product variant.
func (s *Store) VariantStock(ctx context.Context, variantID int64) (domain.ProductVariantStock, error) {
	const op = "postgresrepo.Store.VariantStock"

	db := s.handle(ctx)

	v := domain.ProductVariantStock{VariantID: variantID}
	err := db.QueryRow(ctx,
		`SELECT stock, reserved_stock, sold_count
       	 FROM product_variants WHERE id = $1`,
		variantID,
	).Scan(&v.Stock, &v.Reserved, &v.Sold)
	if err != nil {
		return domain.ProductVariantStock{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return v, nil
}

// ReserveStock atomically checks availability and increments reserved_stock.
// The check and the increment are one statement so concurrent reservations on
// the same variant cannot oversell.
func (s *Store) ReserveStock(ctx context.Context, variantID int64, qty int) error {
	const op = "postgresrepo.Store.ReserveStock"

	db := s.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE product_variants
        	SET reserved_stock = reserved_stock + $2, updated_at = now()
      	 WHERE id = $1
        	AND stock - reserved_stock - sold_count >= $2`,
		variantID, qty,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		if _, err := s.VariantStock(ctx, variantID); err != nil {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrInsufficientStock)
	}

	return nil
}

// ReleaseStock decrements reserved_stock, floored at zero so a double release
// is harmless.
func (s *Store) ReleaseStock(ctx context.Context, variantID int64, qty int) error {
	const op = "postgresrepo.Store.ReleaseStock"

	db := s.handle(ctx)

	_, err := db.Exec(ctx,
		`UPDATE product_variants
        	SET reserved_stock = GREATEST(reserved_stock - $2, 0), updated_at = now()
      	 WHERE id = $1`,
		variantID, qty,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// CommitStock converts a reservation into a sale on the paid transition.
func (s *Store) CommitStock(ctx context.Context, variantID int64, qty int) error {
	const op = "postgresrepo.Store.CommitStock"

	db := s.handle(ctx)

	_, err := db.Exec(ctx,
		`UPDATE product_variants
        	SET reserved_stock = GREATEST(reserved_stock - $2, 0),
            	sold_count = sold_count + $2,
            	updated_at = now()
      	 WHERE id = $1`,
		variantID, qty,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// SlotAvailability returns the capacity counters for one ticket/date/slot row.
func (s *Store) SlotAvailability(ctx context.Context, ref domain.SlotRef) (domain.SlotAvailability, error) {
	const op = "postgresrepo.Store.SlotAvailability"

	db := s.handle(ctx)

	a := domain.SlotAvailability{Slot: ref}
	err := db.QueryRow(ctx,
		`SELECT total_capacity, reserved_capacity, sold_capacity
       	 FROM ticket_availabilities
      	 WHERE ticket_id = $1 AND date = $2 AND time_slot IS NOT DISTINCT FROM $3`,
		ref.TicketID, ref.Date, ref.TimeSlot,
	).Scan(&a.Total, &a.Reserved, &a.Sold)
	if err != nil {
		return domain.SlotAvailability{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return a, nil
}

func (s *Store) ListSlotAvailability(ctx context.Context, ticketID int64, date string) ([]domain.SlotAvailability, error) {
	const op = "postgresrepo.Store.ListSlotAvailability"

	db := s.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT time_slot, total_capacity, reserved_capacity, sold_capacity
       	 FROM ticket_availabilities
      	 WHERE ticket_id = $1 AND date = $2
      	 ORDER BY time_slot NULLS FIRST`,
		ticketID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.SlotAvailability
	for rows.Next() {
		a := domain.SlotAvailability{Slot: domain.SlotRef{TicketID: ticketID, Date: date}}
		if err := rows.Scan(&a.Slot.TimeSlot, &a.Total, &a.Reserved, &a.Sold); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// ReserveCapacity is the ticket-slot counterpart of ReserveStock.
func (s *Store) ReserveCapacity(ctx context.Context, ref domain.SlotRef, qty int) error {
	const op = "postgresrepo.Store.ReserveCapacity"

	db := s.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE ticket_availabilities
        	SET reserved_capacity = reserved_capacity + $4, updated_at = now()
      	 WHERE ticket_id = $1 AND date = $2 AND time_slot IS NOT DISTINCT FROM $3
        	AND total_capacity - reserved_capacity - sold_capacity >= $4`,
		ref.TicketID, ref.Date, ref.TimeSlot, qty,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		if _, err := s.SlotAvailability(ctx, ref); err != nil {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrInsufficientStock)
	}

	return nil
}

func (s *Store) ReleaseCapacity(ctx context.Context, ref domain.SlotRef, qty int) error {
	const op = "postgresrepo.Store.ReleaseCapacity"

	db := s.handle(ctx)

	_, err := db.Exec(ctx,
		`UPDATE ticket_availabilities
        	SET reserved_capacity = GREATEST(reserved_capacity - $4, 0), updated_at = now()
      	 WHERE ticket_id = $1 AND date = $2 AND time_slot IS NOT DISTINCT FROM $3`,
		ref.TicketID, ref.Date, ref.TimeSlot, qty,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// IncrementSold bumps the sold_capacity reporting counter under optimistic
// concurrency. Missing rows and exhausted retries are silently ignored: who
// holds a ticket is recorded in issued_tickets, this counter only feeds
// availability reporting.
func (s *Store) IncrementSold(ctx context.Context, ref domain.SlotRef, delta int) error {
	const op = "postgresrepo.Store.IncrementSold"

	if delta <= 0 {
		return nil
	}

	db := s.handle(ctx)

	err := optimistic.Retry(ctx, optimistic.DefaultAttempts, func(ctx context.Context) error {
		var id int64
		var sold, version int

		err := db.QueryRow(ctx,
			`SELECT id, sold_capacity, version
           	 FROM ticket_availabilities
          	 WHERE ticket_id = $1 AND date = $2 AND time_slot IS NOT DISTINCT FROM $3`,
			ref.TicketID, ref.Date, ref.TimeSlot,
		).Scan(&id, &sold, &version)
		if err != nil {
			return nil
		}

		tag, err := db.Exec(ctx,
			`UPDATE ticket_availabilities
            	SET sold_capacity = $2, version = $3, updated_at = now()
          	 WHERE id = $1 AND version = $4`,
			id, sold+delta, version+1, version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return optimistic.ErrConflict
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
