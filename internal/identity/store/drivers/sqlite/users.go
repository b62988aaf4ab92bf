package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/edumall/edumall/internal/identity/domain"
)

type usersRepo struct {
	db  dbtx
	now func() time.Time
}

const userColumns = `id, phone, first_name, last_name, email, is_phone_verified, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = ?`, phone)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := toMillis(r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, phone, first_name, last_name, email, is_phone_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Phone, u.FirstName, u.LastName, mapStringNull(u.Email), u.IsPhoneVerified, now, now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) MarkPhoneVerified(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_phone_verified = 1, updated_at = ? WHERE id = ?`,
		toMillis(r.now()), userID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u                    domain.User
		email                sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Phone, &u.FirstName, &u.LastName, &email, &u.IsPhoneVerified, &createdAt, &updatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Email = mapNullString(email)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
