package pg

import (
	"context"
	"time"
)

type revocationStore struct{ q querier }

func (s *revocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`insert into revoked_tokens(jti, expires_at) values($1,$2) on conflict do nothing`,
		jti, expiresAt)
	return mapErr(err)
}

func (s *revocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	row := s.q.QueryRowContext(ctx,
		`select count(1) from revoked_tokens where jti=$1 and expires_at > now()`, jti)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeExpiredTokens drops denylist entries whose tokens have expired anyway.
// Meant to run periodically from the server process.
func (s *Store) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.q.ExecContext(ctx, `delete from revoked_tokens where expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
