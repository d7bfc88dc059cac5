// Package postgres implements the repository contracts on pgx/v5.
//
// Every store runs its SQL through a querier, which is either the pool or
// the pgx.Tx handed out by InTx, so the same code serves both paths.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/teamchat/internal/repository"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Users() repository.UserRepository                   { return &UserStore{q: s.q} }
func (s *Store) Workspaces() repository.WorkspaceRepository         { return &WorkspaceStore{q: s.q} }
func (s *Store) Channels() repository.ChannelRepository             { return &ChannelStore{q: s.q} }
func (s *Store) DirectMessages() repository.DirectMessageRepository { return &DMStore{q: s.q} }
func (s *Store) Messages() repository.MessageRepository             { return &MessageStore{q: s.q} }
func (s *Store) Reactions() repository.ReactionRepository           { return &ReactionStore{q: s.q} }
func (s *Store) Invites() repository.InviteRepository               { return &InviteStore{q: s.q} }
func (s *Store) Notifications() repository.NotificationRepository   { return &NotificationStore{q: s.q} }

// InTx runs fn inside pgx.BeginFunc: commit when fn returns nil, rollback
// otherwise. A Store already inside a transaction just calls fn.
//
// Why hand fn a whole Store instead of a pgx.Tx?
//   - The service composes repositories (remove a member, then drop the
//     notification row) and should not know which driver runs them.
//   - Every repository takes a querier, which both *pgxpool.Pool and
//     pgx.Tx satisfy, so the code inside and outside a transaction is the
//     same code.
//   - Nesting is flattened: a helper that opens its own InTx joins the
//     caller's transaction instead of opening a second connection.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{pool: s.pool, q: tx, inTx: true})
	})
}

// uniqueViolation is SQLSTATE 23505.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
