package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"pressline.org/internal/auth"
	"pressline.org/internal/content"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func userRow(id int64, username string, active, super bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "phone_number", "email", "username", "password_hash",
		"is_active", "is_superuser", "created_at", "updated_at",
	}).AddRow(id, "Test User", "", username+"@example.com", username, "$2a$04$hash", active, super, now, now)
}

func TestUserFindByIdentifier(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery("select (.+) from users where username=\\$1 or lower\\(email\\)=lower\\(\\$1\\)").
		WithArgs("alice").
		WillReturnRows(userRow(1, "alice", true, false))
	mock.ExpectQuery("select r.id, r.name, r.description, r.created_at, r.updated_at").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow(int64(3), "editor", "", time.Now(), time.Now()))
	mock.ExpectQuery("select p.id, p.name, p.resource, p.action, p.description, p.created_at").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "resource", "action", "description", "created_at"}).
			AddRow(int64(5), "posts:read", "posts", "read", "", time.Now()))

	u, err := st.Users(ctx).FindByIdentifier(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByIdentifier: %v", err)
	}
	if u.ID != 1 || u.Username != "alice" {
		t.Fatalf("got user %d/%q", u.ID, u.Username)
	}
	if len(u.Roles) != 1 || u.Roles[0].Name != "editor" {
		t.Fatalf("roles = %+v", u.Roles)
	}
	if len(u.Roles[0].Permissions) != 1 || u.Roles[0].Permissions[0].Resource != "posts" {
		t.Fatalf("permissions = %+v", u.Roles[0].Permissions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindByIDNotFound(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery("select (.+) from users where id=\\$1").
		WithArgs(int64(404)).
		WillReturnRows(userRow(0, "", true, false).RowError(0, errors.New("no rows")))
	mock.ExpectQuery("select (.+) from users where id=\\$1").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// A result set with zero rows maps to ErrNotFound.
	if _, err := st.Users(ctx).FindByID(ctx, 404); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := st.Users(ctx).FindByID(ctx, 404); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserCreateConflict(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := st.Users(ctx).Create(ctx, &auth.User{Username: "alice", Email: "alice@example.com"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUserCreateReturnsID(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("insert into users").
		WithArgs("Alice", "", "alice@example.com", "alice", "$2a$04$hash", true, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	u := &auth.User{Name: "Alice", Email: "alice@example.com", Username: "alice", PasswordHash: "$2a$04$hash", Active: true}
	if err := st.Users(ctx).Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID != 7 {
		t.Fatalf("id = %d, want 7", u.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetActiveNotFound(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec("update users set is_active=\\$2").
		WithArgs(int64(404), false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.Users(ctx).SetActive(ctx, 404, false); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRoleCreateAndAttach(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("insert into roles").
		WithArgs("editor", "can edit posts").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(3), now, now))
	mock.ExpectExec("insert into role_permissions").
		WithArgs(int64(3), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	role := &auth.Role{Name: "editor", Description: "can edit posts"}
	if err := st.Roles(ctx).Create(ctx, role); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if role.ID != 3 {
		t.Fatalf("id = %d, want 3", role.ID)
	}
	if err := st.Roles(ctx).AddPermission(ctx, role.ID, 5); err != nil {
		t.Fatalf("AddPermission: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithinTxCommitsAndRollsBack(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into roles").
		WithArgs("editor", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectCommit()

	err := st.WithinTx(ctx, func(ctx context.Context, tx auth.Store) error {
		return tx.Roles(ctx).Create(ctx, &auth.Role{Name: "editor"})
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = st.WithinTx(ctx, func(context.Context, auth.Store) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRevocationRoundTrip(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	mock.ExpectExec("insert into revoked_tokens").
		WithArgs("jti-1", exp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select count\\(1\\) from revoked_tokens").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	if err := st.RevokedTokens(ctx).Revoke(ctx, "jti-1", exp); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err := st.RevokedTokens(ctx).IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatal("expected token to be revoked")
	}
}

func TestPostStoreCRUD(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := NewPostStore(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("insert into posts").
		WithArgs("Hello", "body", true, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(9), now, now))

	p := &content.Post{Title: "Hello", Content: "body", Published: true, AuthorID: 1}
	if err := st.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 9 {
		t.Fatalf("id = %d, want 9", p.ID)
	}

	mock.ExpectQuery("select (.+) from posts where id=\\$1").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	if _, err := st.FindByID(ctx, 404); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("err = %v, want content.ErrNotFound", err)
	}

	mock.ExpectExec("delete from posts where id=\\$1").
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := st.Delete(ctx, 404); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("err = %v, want content.ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
