package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/invitation/domain"
	"github.com/hearthhq/hearth/pkg/db"
)

const maxTokenAttempts = 5

var errTokenCollision = errors.New("invitation token collision")

// createWithFreshToken persists a new invitation, regenerating the token on
// the vanishingly rare unique-index collision.
func (s *service) createWithFreshToken(ctx context.Context, householdID, invitedBy snowflake.ID, email string, expiresAt time.Time, tokenBytes int) (*domain.Invitation, error) {
	var lastErr error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := generateToken(tokenBytes)
		if err != nil {
			return nil, err
		}

		exists, err := s.repo.ExistsByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		if exists {
			lastErr = errTokenCollision
			continue
		}

		invitation, err := domain.NewActive(s.genID.Generate(), householdID, email, token, invitedBy, expiresAt)
		if err != nil {
			return nil, err
		}
		now := s.clk.Now().UTC()
		invitation.CreatedAt = now
		invitation.UpdatedAt = now

		if err := s.repo.Save(ctx, &invitation); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// Either a token collision or a concurrent create won the
				// active-invitee index. Reuse the winner when one exists,
				// otherwise regenerate the token.
				winner, findErr := s.repo.FindActiveByHouseholdIDAndEmail(ctx, householdID, email)
				if findErr != nil {
					return nil, findErr
				}
				if winner != nil && !winner.IsExpired(now) {
					return winner, nil
				}
				lastErr = err
				continue
			}
			return nil, err
		}
		return &invitation, nil
	}
	return nil, lastErr
}

func generateToken(numBytes int) (string, error) {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
