package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shop-admin/backend/internal/model"
)

func (db *Postgres) InsertPasswordResetToken(ctx context.Context, row *model.PasswordResetToken) (int64, error) {
	query := `
		INSERT INTO password_reset_tokens
			(user_id, identifier, reset_token_hash, otp_hash, expires_at, attempts, max_attempts, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, NOW())
		RETURNING id
	`
	var id int64
	err := db.Pool.QueryRow(ctx, query,
		row.UserID,
		row.Identifier,
		row.ResetTokenHash,
		row.OTPHash,
		row.ExpiresAt,
		row.MaxAttempts,
		row.IPAddress,
		row.UserAgent,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetLivePasswordResetToken returns the newest unused, unexpired row for the
// identifier.
func (db *Postgres) GetLivePasswordResetToken(ctx context.Context, identifier string) (*model.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, identifier, reset_token_hash, otp_hash, expires_at, attempts, max_attempts, used_at, ip_address, user_agent, created_at
		FROM password_reset_tokens
		WHERE identifier = $1 AND used_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`
	return db.scanResetToken(db.Pool.QueryRow(ctx, query, identifier))
}

func (db *Postgres) GetPasswordResetTokenByHash(ctx context.Context, resetTokenHash string) (*model.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, identifier, reset_token_hash, otp_hash, expires_at, attempts, max_attempts, used_at, ip_address, user_agent, created_at
		FROM password_reset_tokens
		WHERE reset_token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
	`
	return db.scanResetToken(db.Pool.QueryRow(ctx, query, resetTokenHash))
}

// CountRecentPasswordResetRequests counts rows created for the identifier
// since the window start, used and unused alike. Drives the request rate limit.
func (db *Postgres) CountRecentPasswordResetRequests(ctx context.Context, identifier string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM password_reset_tokens
		WHERE identifier = $1 AND created_at >= $2
	`
	var count int
	if err := db.Pool.QueryRow(ctx, query, identifier, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// InvalidateLivePasswordResetTokens supersedes earlier live rows when a new
// request is made for the same identifier.
func (db *Postgres) InvalidateLivePasswordResetTokens(ctx context.Context, identifier string) error {
	query := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE identifier = $1 AND used_at IS NULL
	`
	_, err := db.Pool.Exec(ctx, query, identifier)
	return err
}

func (db *Postgres) IncrementPasswordResetAttempts(ctx context.Context, id int64) (int, error) {
	query := `
		UPDATE password_reset_tokens
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := db.Pool.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

// RotateResetTokenHash replaces the row's reset token after a successful OTP
// check, so the bearer credential handed to the client never sits in the
// table in plain form.
func (db *Postgres) RotateResetTokenHash(ctx context.Context, id int64, resetTokenHash string) error {
	query := `
		UPDATE password_reset_tokens
		SET reset_token_hash = $2
		WHERE id = $1 AND used_at IS NULL
	`
	tag, err := db.Pool.Exec(ctx, query, id, resetTokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CompletePasswordReset persists the new password hash, consumes the reset
// row and revokes every refresh token of the user in one transaction, so a
// partial failure cannot leave the account half-reset.
func (db *Postgres) CompletePasswordReset(ctx context.Context, userID int64, passwordHash string, resetRowID int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err = tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, userID, passwordHash); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL
	`, resetRowID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if _, err = tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *Postgres) DeletePasswordResetToken(ctx context.Context, id int64) error {
	query := `DELETE FROM password_reset_tokens WHERE id = $1`
	_, err := db.Pool.Exec(ctx, query, id)
	return err
}

func (db *Postgres) scanResetToken(row pgx.Row) (*model.PasswordResetToken, error) {
	var token model.PasswordResetToken
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.Identifier,
		&token.ResetTokenHash,
		&token.OTPHash,
		&token.ExpiresAt,
		&token.Attempts,
		&token.MaxAttempts,
		&token.UsedAt,
		&token.IPAddress,
		&token.UserAgent,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}
