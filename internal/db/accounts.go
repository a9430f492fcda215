package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderSpotify is the provider name stored for Spotify accounts.
const ProviderSpotify = "spotify"

// AccountRepository handles provider account operations.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// SaveLogin creates or updates user and the account linked to it in one
// transaction. An existing account with the same provider id gets the new tokens.
func (r *AccountRepository) SaveLogin(ctx context.Context, user *User, account *Account) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := upsertUser(ctx, tx, user); err != nil {
			return err
		}

		account.UserID = user.ID
		query := `
			INSERT INTO accounts (provider, provider_id, access_token, refresh_token, user_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (provider_id) DO UPDATE SET
				access_token = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				user_id = EXCLUDED.user_id
			RETURNING id
		`
		err := tx.QueryRow(ctx, query,
			account.Provider,
			account.ProviderID,
			account.AccessToken,
			account.RefreshToken,
			account.UserID,
		).Scan(&account.ID)
		if err != nil {
			return fmt.Errorf("upserting account: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving login: %w", err)
	}
	return nil
}

// GetByAccessToken retrieves the account currently holding accessToken.
func (r *AccountRepository) GetByAccessToken(ctx context.Context, accessToken string) (*Account, error) {
	query := `
		SELECT id, provider, provider_id, access_token, refresh_token, user_id
		FROM accounts
		WHERE access_token = $1
	`
	var a Account
	err := r.pool.QueryRow(ctx, query, accessToken).Scan(
		&a.ID,
		&a.Provider,
		&a.ProviderID,
		&a.AccessToken,
		&a.RefreshToken,
		&a.UserID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &a, nil
}

// RecordSync marks a successful sync for the account holding accessToken.
// If updatedToken is non-empty it replaces the stored access token.
// Returns ErrNotFound when no stored account holds accessToken.
func (r *AccountRepository) RecordSync(ctx context.Context, accessToken, updatedToken string, syncedAt time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var accountID int64
		var userID string
		err := tx.QueryRow(ctx, `
			SELECT id, user_id
			FROM accounts
			WHERE access_token = $1
			FOR UPDATE
		`, accessToken).Scan(&accountID, &userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("locking account: %w", err)
		}

		if updatedToken != "" {
			_, err := tx.Exec(ctx, `UPDATE accounts SET access_token = $2 WHERE id = $1`, accountID, updatedToken)
			if err != nil {
				return fmt.Errorf("updating access token: %w", err)
			}
		}

		return updateLastSync(ctx, tx, userID, syncedAt)
	})
}
