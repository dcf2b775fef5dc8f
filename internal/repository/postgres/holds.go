package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/spkstore/checkout-go/internal/domain"
)

// CreateHold persists a hold and its line items. Item IDs are filled in on
// return; callers are expected to run this inside WithTx together with the
// ledger reservations.
func (s *Store) CreateHold(ctx context.Context, h *domain.Hold) error {
	const op = "postgresrepo.Store.CreateHold"

	db := s.handle(ctx)

	err := db.QueryRow(ctx,
		`INSERT INTO holds(
            order_number, user_id, kind, payment_status, status, total,
            customer_name, customer_email, customer_phone, payment_expires_at,
            created_at, updated_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
      	 RETURNING id, created_at, updated_at`,
		h.OrderNumber, h.UserID, h.Kind, h.PaymentStatus, h.Status, h.Total,
		h.Customer.Name, h.Customer.Email, h.Customer.Phone, h.PaymentExpires,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	for i := range h.Items {
		it := &h.Items[i]
		it.HoldID = h.ID
		err := db.QueryRow(ctx,
			`INSERT INTO hold_items(
                hold_id, variant_id, ticket_id, selected_date, time_slot,
                name, quantity, unit_price, subtotal)
           	 VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), NULLIF($4, ''), $5, $6, $7, $8, $9)
          	 RETURNING id`,
			h.ID, it.VariantID, it.TicketID, it.Date, it.TimeSlot,
			it.Name, it.Quantity, it.UnitPrice, it.Subtotal,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
	}

	return nil
}

func (s *Store) GetHoldByOrderNumber(ctx context.Context, orderNumber string) (*domain.Hold, error) {
	const op = "postgresrepo.Store.GetHoldByOrderNumber"

	db := s.handle(ctx)

	var h domain.Hold
	err := db.QueryRow(ctx,
		`SELECT id, order_number, user_id, kind, payment_status, status, total,
            	customer_name, customer_email, customer_phone,
            	COALESCE(payment_token, ''), COALESCE(payment_url, ''),
            	payment_expires_at, paid_at, expired_at,
            	COALESCE(pickup_code, ''), COALESCE(pickup_status, ''), pickup_expires_at,
            	created_at, updated_at
       	 FROM holds WHERE order_number = $1`,
		orderNumber,
	).Scan(
		&h.ID, &h.OrderNumber, &h.UserID, &h.Kind, &h.PaymentStatus, &h.Status, &h.Total,
		&h.Customer.Name, &h.Customer.Email, &h.Customer.Phone,
		&h.PaymentToken, &h.PaymentURL,
		&h.PaymentExpires, &h.PaidAt, &h.ExpiredAt,
		&h.PickupCode, &h.PickupStatus, &h.PickupExpiresAt,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	items, err := s.listHoldItems(ctx, h.ID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	h.Items = items

	return &h, nil
}

func (s *Store) GetHoldByPickupCode(ctx context.Context, pickupCode string) (*domain.Hold, error) {
	const op = "postgresrepo.Store.GetHoldByPickupCode"

	db := s.handle(ctx)

	var orderNumber string
	err := db.QueryRow(ctx,
		`SELECT order_number FROM holds WHERE pickup_code = $1`,
		pickupCode,
	).Scan(&orderNumber)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return s.GetHoldByOrderNumber(ctx, orderNumber)
}

func (s *Store) listHoldItems(ctx context.Context, holdID int64) ([]domain.LineItem, error) {
	db := s.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT id, hold_id, COALESCE(variant_id, 0), COALESCE(ticket_id, 0),
            	COALESCE(selected_date::text, ''), time_slot,
            	name, quantity, unit_price, subtotal
       	 FROM hold_items WHERE hold_id = $1 ORDER BY id`,
		holdID,
	)
	if err != nil {
		return nil, translateDBErr(err)
	}

	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(
			&it.ID, &it.HoldID, &it.VariantID, &it.TicketID,
			&it.Date, &it.TimeSlot,
			&it.Name, &it.Quantity, &it.UnitPrice, &it.Subtotal,
		); err != nil {
			return nil, translateDBErr(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, translateDBErr(err)
	}

	return items, nil
}

func (s *Store) SetPaymentRef(ctx context.Context, holdID int64, token, redirectURL string) error {
	const op = "postgresrepo.Store.SetPaymentRef"

	db := s.handle(ctx)

	_, err := db.Exec(ctx,
		`UPDATE holds
        	SET payment_token = $2, payment_url = $3, updated_at = now()
      	 WHERE id = $1`,
		holdID, token, redirectURL,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// DeleteHold removes a hold and its items. Used only by the checkout rollback
// path, before any payment reference exists.
func (s *Store) DeleteHold(ctx context.Context, holdID int64) error {
	const op = "postgresrepo.Store.DeleteHold"

	db := s.handle(ctx)

	if _, err := db.Exec(ctx, `DELETE FROM hold_items WHERE hold_id = $1`, holdID); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}
	if _, err := db.Exec(ctx, `DELETE FROM holds WHERE id = $1`, holdID); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// MarkPending records a pending gateway state. Guarded so terminal holds are
// untouched; returns whether the update applied.
func (s *Store) MarkPending(ctx context.Context, holdID int64) (bool, error) {
	const op = "postgresrepo.Store.MarkPending"

	db := s.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE holds
        	SET payment_status = 'pending', updated_at = now()
      	 WHERE id = $1 AND payment_status IN ('unpaid', 'pending')`,
		holdID,
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}

// MarkPaid applies the paid transition exactly once: the guard refuses holds
// that already reached any terminal payment status.
func (s *Store) MarkPaid(ctx context.Context, holdID int64, upd domain.PaidUpdate) (bool, error) {
	const op = "postgresrepo.Store.MarkPaid"

	db := s.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE holds
        	SET payment_status = 'paid', status = $2, paid_at = $3,
            	pickup_code = NULLIF($4, ''), pickup_status = NULLIF($5, ''),
            	pickup_expires_at = $6, updated_at = now()
      	 WHERE id = $1 AND payment_status IN ('unpaid', 'pending')`,
		holdID, upd.Status, upd.PaidAt, upd.PickupCode, upd.PickupStatus, upd.PickupExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}

// MarkClosed applies an expired/failed/refunded transition with the same
// guard as MarkPaid, so duplicate deliveries cannot double-release inventory.
func (s *Store) MarkClosed(
	ctx context.Context,
	holdID int64,
	paymentStatus domain.PaymentStatus,
	status domain.FulfillmentStatus,
	expiredAt *time.Time,
) (bool, error) {
	const op = "postgresrepo.Store.MarkClosed"

	db := s.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE holds
        	SET payment_status = $2, status = $3, expired_at = COALESCE($4, expired_at),
            	updated_at = now()
      	 WHERE id = $1 AND payment_status IN ('unpaid', 'pending')`,
		holdID, paymentStatus, status, expiredAt,
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}

func (s *Store) SetPickupStatus(ctx context.Context, holdID int64, status domain.PickupStatus) error {
	const op = "postgresrepo.Store.SetPickupStatus"

	db := s.handle(ctx)

	_, err := db.Exec(ctx,
		`UPDATE holds SET pickup_status = $2, updated_at = now() WHERE id = $1`,
		holdID, status,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// CompletePickup marks a paid order's pickup done, refusing repeats.
func (s *Store) CompletePickup(ctx context.Context, holdID int64, completedBy string) (bool, error) {
	const op = "postgresrepo.Store.CompletePickup"

	db := s.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE holds
        	SET pickup_status = 'completed', status = 'completed',
            	picked_up_by = $2, picked_up_at = now(), updated_at = now()
      	 WHERE id = $1 AND payment_status = 'paid' AND pickup_status = 'pending_pickup'`,
		holdID, completedBy,
	)
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return tag.RowsAffected() > 0, nil
}
