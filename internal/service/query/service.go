// Package query serves the storefront's availability reads: slot capacity
// and variant stock, cached with a short TTL since every reservation and
// payment invalidates the affected keys anyway.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spkstore/checkout-go/internal/domain"
	redisx "github.com/spkstore/checkout-go/internal/redis"
	"github.com/spkstore/checkout-go/internal/repository"
	redisrepo "github.com/spkstore/checkout-go/internal/repository/redis"
)

const cacheTTL = 30 * time.Second

var ErrNotFound = errors.New("not found")

type Store interface {
	ListSlotAvailability(ctx context.Context, ticketID int64, date string) ([]domain.SlotAvailability, error)
	VariantStock(ctx context.Context, variantID int64) (domain.ProductVariantStock, error)
}

type Service struct {
	store Store
	cache *redisrepo.Cache
}

func New(store Store, cache *redisrepo.Cache) *Service {
	return &Service{store: store, cache: cache}
}

// Slot is the public availability view: only what is still sellable, never
// the raw reserved/sold counters.
type Slot struct {
	TimeSlot  *string `json:"time_slot"`
	Available int     `json:"available"`
}

type VariantStock struct {
	VariantID int64 `json:"variant_id"`
	Available int   `json:"available"`
}

// SlotAvailability lists the remaining capacity per slot for one ticket and
// date, all-day row first.
func (s *Service) SlotAvailability(ctx context.Context, ticketID int64, date string) ([]Slot, error) {
	const op = "service.query.SlotAvailability"

	key := redisx.KeySlotAvailability(ticketID, date)

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, key, cacheTTL,
		func(ctx context.Context) ([]Slot, error) {
			rows, err := s.store.ListSlotAvailability(ctx, ticketID, date)
			if err != nil {
				return nil, err
			}

			slots := make([]Slot, 0, len(rows))
			for _, r := range rows {
				a := r.Available()
				if a < 0 {
					a = 0
				}
				slots = append(slots, Slot{TimeSlot: r.Slot.TimeSlot, Available: a})
			}
			return slots, nil
		})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) VariantStock(ctx context.Context, variantID int64) (VariantStock, error) {
	const op = "service.query.VariantStock"

	key := redisx.KeyVariantStock(variantID)

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, key, cacheTTL,
		func(ctx context.Context) (VariantStock, error) {
			v, err := s.store.VariantStock(ctx, variantID)
			if err != nil {
				return VariantStock{}, err
			}

			a := v.Available()
			if a < 0 {
				a = 0
			}
			return VariantStock{VariantID: variantID, Available: a}, nil
		})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return VariantStock{}, fmt.Errorf("%s:%w", op, ErrNotFound)
		}
		return VariantStock{}, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
