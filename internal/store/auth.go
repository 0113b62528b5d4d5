package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// ErrInvalidOTP is returned when the presented code does not match.
var ErrInvalidOTP = errors.New("incorrect otp")

// SaveOTP stores a bcrypt hash of the login code, replacing any previous
// code for the number.
func (s *Store) SaveOTP(ctx context.Context, mobile, otp string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing otp: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO otps (mobile_number, otp_hash, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (mobile_number) DO UPDATE SET otp_hash = $2, created_at = now()`,
		mobile, string(hash))
	if err != nil {
		return fmt.Errorf("storing otp: %w", err)
	}
	return nil
}

// ConsumeOTP verifies the code and deletes it on success. Codes are single
// use regardless of outcome value.
func (s *Store) ConsumeOTP(ctx context.Context, mobile, otp string) error {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT otp_hash FROM otps WHERE mobile_number = $1 AND created_at > now() - interval '10 minutes'`,
		mobile).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("loading otp: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(otp)) != nil {
		return ErrInvalidOTP
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM otps WHERE mobile_number = $1`, mobile); err != nil {
		return fmt.Errorf("clearing otp: %w", err)
	}
	return nil
}

// UpsertUser creates or renames the user for a verified mobile number.
func (s *Store) UpsertUser(ctx context.Context, mobile, name string) (*models.User, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (mobile_number, name)
		VALUES ($1, $2)
		ON CONFLICT (mobile_number) DO UPDATE SET name = $2
		RETURNING id`, mobile, name).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return &models.User{ID: fmt.Sprint(id), Name: name, Mobile: mobile}, nil
}
