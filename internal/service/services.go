package service

import (
	"github.com/spkstore/checkout-go/internal/clock"
	"github.com/spkstore/checkout-go/internal/gateway/midtrans"
	redisx "github.com/spkstore/checkout-go/internal/redis"
	postgres "github.com/spkstore/checkout-go/internal/repository/postgres"
	redis "github.com/spkstore/checkout-go/internal/repository/redis"
	"github.com/spkstore/checkout-go/internal/service/checkout"
	"github.com/spkstore/checkout-go/internal/service/orders"
	"github.com/spkstore/checkout-go/internal/service/query"
	"github.com/spkstore/checkout-go/internal/service/reconcile"
)

type Services struct {
	Checkout  *checkout.Service
	Reconcile *reconcile.Service
	Orders    *orders.Service
	Query     *query.Service
}

type Config struct {
	Checkout  checkout.Config
	Reconcile reconcile.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.OrdersPubSub,
	limiter *redis.SlidingWindowLimiter,
	gw *midtrans.Client,
	clk clock.Clock,
	cfg Config,
) *Services {
	return &Services{
		Checkout:  checkout.New(store, gw, cache, limiter, clk, cfg.Checkout),
		Reconcile: reconcile.New(store, gw, cache, pubsub, clk, cfg.Reconcile),
		Orders:    orders.New(store, clk),
		Query:     query.New(store, cache),
	}
}
