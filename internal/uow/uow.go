package uow

import "context"

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// TxRunner is the transactional entry point a unit of work wraps.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UoW represents a unit of work.
type UoW struct {
	store TxRunner
}

func NewUoW(store TxRunner) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.store.WithTx(ctx, func(ctx context.Context) error {
		return fn(ctx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
