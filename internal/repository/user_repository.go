package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/property-listings/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,phone,name,password_hash,provider,email_verified,created_at,updated_at"

// NewUser carries the fields needed to insert a user.
type NewUser struct {
	Email        string
	Phone        string
	Name         string
	PasswordHash string
	Provider     string
}

// Create inserts a user and returns the stored row. Duplicate email or
// phone map to ErrEmailExists / ErrPhoneExists.
func (r *UserRepo) Create(ctx context.Context, in NewUser) (model.User, error) {
	email := normalizeEmail(in.Email)
	var phone *string
	if p := strings.TrimSpace(in.Phone); p != "" {
		phone = &p
	}
	provider := in.Provider
	if provider == "" {
		provider = model.ProviderCredentials
	}
	row := r.DB.QueryRowContext(ctx,
		"INSERT INTO users (email, phone, name, password_hash, provider) VALUES ($1,$2,$3,$4,$5) RETURNING "+userColumns,
		email, phone, strings.TrimSpace(in.Name), in.PasswordHash, provider)
	u, err := scanUser(row)
	if err != nil {
		if name, ok := uniqueViolation(err); ok {
			if strings.Contains(name, "phone") {
				return model.User{}, ErrPhoneExists
			}
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE LOWER(email)=$1 LIMIT 1", normalizeEmail(email))
	u, err := scanUser(row)
	return u, notFound(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=$1 LIMIT 1", id)
	u, err := scanUser(row)
	return u, notFound(err)
}

// EmailExists and PhoneExists back the pre-insert duplicate checks of
// registration so that the client gets a specific message.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email)=$1)", normalizeEmail(email)).Scan(&ok)
	return ok, err
}

func (r *UserRepo) PhoneExists(ctx context.Context, phone string) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE phone=$1)", strings.TrimSpace(phone)).Scan(&ok)
	return ok, err
}

// UpsertGoogle returns the user for a verified Google identity, creating
// it on first sign-in. An existing credentials account with the same email
// is reused and marked verified.
func (r *UserRepo) UpsertGoogle(ctx context.Context, email, name string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (email, name, provider, email_verified)
		VALUES ($1,$2,$3,TRUE)
		ON CONFLICT ((LOWER(email))) DO UPDATE
		SET email_verified=TRUE, updated_at=NOW(),
		    name=CASE WHEN users.name='' THEN EXCLUDED.name ELSE users.name END
		RETURNING `+userColumns,
		normalizeEmail(email), strings.TrimSpace(name), model.ProviderGoogle)
	return scanUser(row)
}

// SetEmailVerified marks the address as confirmed.
func (r *UserRepo) SetEmailVerified(ctx context.Context, email string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=TRUE, updated_at=NOW() WHERE LOWER(email)=$1", normalizeEmail(email))
	return affectedOne(res, err)
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1", userID, hash)
	return affectedOne(res, err)
}

// IsAdmin asks the database capability function whether email belongs to
// an administrator.
func (r *UserRepo) IsAdmin(ctx context.Context, email string) (bool, error) {
	var ok sql.NullBool
	if err := r.DB.QueryRowContext(ctx, "SELECT is_admin($1)", normalizeEmail(email)).Scan(&ok); err != nil {
		return false, err
	}
	return ok.Valid && ok.Bool, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u     model.User
		phone sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &phone, &u.Name, &u.PasswordHash, &u.Provider,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	return u, nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return notFound(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
