package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sejonglabs/sejong/internal/common"
	"github.com/sejonglabs/sejong/internal/cryptox"
	"github.com/sejonglabs/sejong/internal/dbx"
	"github.com/sejonglabs/sejong/internal/models"
)

// SQLiteRepository is the Repository implementation over a local sqlite
// database. Token columns hold values sealed by the given cipher, never
// plaintext.
type SQLiteRepository struct {
	db     *sql.DB
	cipher *cryptox.Cipher
}

// NewSQLiteRepository binds a repository to the database and token cipher.
func NewSQLiteRepository(db *sql.DB, cipher *cryptox.Cipher) *SQLiteRepository {
	return &SQLiteRepository{db: db, cipher: cipher}
}

func (r *SQLiteRepository) seal(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	return r.cipher.Seal(token)
}

func (r *SQLiteRepository) open(sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	token, err := r.cipher.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: unsealing stored token: %w", common.ErrStorage, err)
	}
	return token, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, acc *models.Account) error {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	access, err := r.seal(acc.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: sealing access token: %w", common.ErrStorage, err)
	}
	refresh, err := r.seal(acc.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: sealing refresh token: %w", common.ErrStorage, err)
	}

	query := `INSERT INTO accounts (id, user_id, email, display_name, avatar_url, access_token, refresh_token, last_login_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(email) DO UPDATE SET
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			last_login_at = excluded.last_login_at`
	_, err = r.db.ExecContext(ctx, query,
		acc.ID, acc.UserID, acc.Email, acc.DisplayName, acc.AvatarURL,
		access, refresh, toMillis(acc.LastLoginAt))
	if err != nil {
		return fmt.Errorf("%w: upsert account: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) SetActive(ctx context.Context, email string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET is_active = 1 WHERE email = ?`, email)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		// Unknown email: leave the previous active pointer as it was.
		if n == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE accounts SET is_active = 0 WHERE email <> ?`, email)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: set active account: %w", common.ErrStorage, err)
	}
	return nil
}

const selectColumns = `id, user_id, email, display_name, avatar_url, access_token, refresh_token, last_login_at, is_active`

func (r *SQLiteRepository) GetActive(ctx context.Context) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM accounts WHERE is_active = 1`)
	return r.scanAccount(row)
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM accounts WHERE email = ?`, email)
	return r.scanAccount(row)
}

func (r *SQLiteRepository) scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		acc             models.Account
		access, refresh []byte
		lastLogin       int64
	)
	err := row.Scan(&acc.ID, &acc.UserID, &acc.Email, &acc.DisplayName, &acc.AvatarURL,
		&access, &refresh, &lastLogin, &acc.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan account: %w", common.ErrStorage, err)
	}

	if acc.AccessToken, err = r.open(access); err != nil {
		return nil, err
	}
	if acc.RefreshToken, err = r.open(refresh); err != nil {
		return nil, err
	}
	acc.LastLoginAt = fromMillis(lastLogin)
	return &acc, nil
}

func (r *SQLiteRepository) UpdateTokens(ctx context.Context, email, access, refresh string) error {
	sealedAccess, err := r.seal(access)
	if err != nil {
		return fmt.Errorf("%w: sealing access token: %w", common.ErrStorage, err)
	}
	sealedRefresh, err := r.seal(refresh)
	if err != nil {
		return fmt.Errorf("%w: sealing refresh token: %w", common.ErrStorage, err)
	}

	query := `UPDATE accounts SET access_token = ?, refresh_token = ?, last_login_at = ? WHERE email = ?`
	if _, err := r.db.ExecContext(ctx, query, sealedAccess, sealedRefresh, toMillis(time.Now()), email); err != nil {
		return fmt.Errorf("%w: update tokens: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) ClearTokens(ctx context.Context, email string) error {
	query := `UPDATE accounts SET access_token = NULL, refresh_token = NULL WHERE email = ?`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("%w: clear tokens: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) ClearAccessToken(ctx context.Context, email string) error {
	query := `UPDATE accounts SET access_token = NULL WHERE email = ?`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("%w: clear access token: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE email = ?`, email); err != nil {
		return fmt.Errorf("%w: remove account: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count accounts: %w", common.ErrStorage, err)
	}
	return n, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Account, error) {
	query := `SELECT id, user_id, email, display_name, avatar_url, last_login_at, is_active
		FROM accounts ORDER BY last_login_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %w", common.ErrStorage, err)
	}
	defer rows.Close()

	var result []models.Account
	for rows.Next() {
		var (
			acc       models.Account
			lastLogin int64
		)
		if err := rows.Scan(&acc.ID, &acc.UserID, &acc.Email, &acc.DisplayName, &acc.AvatarURL, &lastLogin, &acc.IsActive); err != nil {
			return nil, fmt.Errorf("%w: scan account row: %w", common.ErrStorage, err)
		}
		acc.LastLoginAt = fromMillis(lastLogin)
		result = append(result, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list accounts: %w", common.ErrStorage, err)
	}
	return result, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
