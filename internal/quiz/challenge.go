package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/store"
	apperrors "github.com/madrasati/madrasati-api/pkg/errors"
)

const challengePathPrefix = "challenges/"

// ChallengePath returns the store path of a challenge document.
func ChallengePath(id string) string {
	return challengePathPrefix + id
}

// ChallengeParams describes a direct invitation to a named opponent.
type ChallengeParams struct {
	PrincipalID string
	Grade       string
	Subject     string
	Challenger  models.XOGamePlayer
	TargetID    string
}

// CreateChallenge records a pending invitation. The match itself is not
// opened until the target accepts.
func (c *Coordinator) CreateChallenge(ctx context.Context, params ChallengeParams) (*models.XOChallenge, error) {
	if params.TargetID == params.Challenger.ID {
		return nil, apperrors.Clone(apperrors.ErrIllegalMove, "cannot challenge yourself")
	}

	challenge := &models.XOChallenge{
		ID:             c.newID(),
		PrincipalID:    params.PrincipalID,
		ChallengerID:   params.Challenger.ID,
		ChallengerName: params.Challenger.Name,
		TargetID:       params.TargetID,
		Grade:          params.Grade,
		Subject:        params.Subject,
		Status:         models.ChallengePending,
		CreatedAt:      c.now().UnixMilli(),
	}
	payload, err := json.Marshal(challenge)
	if err != nil {
		return nil, fmt.Errorf("encode challenge: %w", err)
	}
	if _, err := c.store.CompareAndSwap(ctx, ChallengePath(challenge.ID), payload, 0); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}
	return challenge, nil
}

// Challenge returns a challenge by id.
func (c *Coordinator) Challenge(ctx context.Context, challengeID string) (*models.XOChallenge, error) {
	challenge, _, err := c.loadChallenge(ctx, challengeID)
	return challenge, err
}

// AcceptChallenge opens the match and marks the challenge accepted. Only
// the invited player may accept, and only while the challenge is pending.
// The challenger hosts and plays the X side.
func (c *Coordinator) AcceptChallenge(ctx context.Context, challengeID string, target models.XOGamePlayer) (*models.XOChallenge, *models.XOGameState, error) {
	challenge, version, err := c.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, nil, err
	}
	if challenge.TargetID != target.ID {
		return nil, nil, apperrors.Clone(apperrors.ErrForbidden, "challenge addressed to another player")
	}
	if challenge.Status != models.ChallengePending {
		return nil, nil, apperrors.Clone(apperrors.ErrConflict, "challenge already resolved")
	}

	host := models.XOGamePlayer{
		ID:     challenge.ChallengerID,
		Name:   challenge.ChallengerName,
		Symbol: models.SymbolX,
	}
	if target.Symbol == "" || target.Symbol == host.Symbol {
		target.Symbol = models.SymbolO
	}
	match, err := c.CreateMatch(ctx, CreateMatchParams{
		PrincipalID: challenge.PrincipalID,
		Grade:       challenge.Grade,
		Subject:     challenge.Subject,
		Host:        host,
		Settings:    models.XOGameSettings{PointsPolicy: models.PolicyWinnerTakesAll},
	})
	if err != nil {
		return nil, nil, err
	}
	match, err = c.JoinMatch(ctx, match.ID, target)
	if err != nil {
		return nil, nil, err
	}

	challenge.Status = models.ChallengeAccepted
	challenge.GameID = match.ID
	payload, err := json.Marshal(challenge)
	if err != nil {
		return nil, nil, fmt.Errorf("encode challenge: %w", err)
	}
	if _, err := c.store.CompareAndSwap(ctx, ChallengePath(challengeID), payload, version); err != nil {
		// Someone resolved the challenge between our read and write. The
		// match we opened belongs to nobody, so drop it.
		if errors.Is(err, store.ErrVersionMismatch) {
			if delErr := c.store.Delete(ctx, MatchPath(match.ID)); delErr != nil {
				c.logger.Warn("failed to discard orphaned match",
					zap.String("match_id", match.ID), zap.Error(delErr))
			}
			return nil, nil, apperrors.Clone(apperrors.ErrConflict, "challenge already resolved")
		}
		return nil, nil, fmt.Errorf("accept challenge: %w", err)
	}
	return challenge, match, nil
}

// DeclineChallenge marks a pending challenge declined. Only the invited
// player may decline.
func (c *Coordinator) DeclineChallenge(ctx context.Context, challengeID, targetID string) (*models.XOChallenge, error) {
	challenge, version, err := c.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.TargetID != targetID {
		return nil, apperrors.Clone(apperrors.ErrForbidden, "challenge addressed to another player")
	}
	if challenge.Status != models.ChallengePending {
		return nil, apperrors.Clone(apperrors.ErrConflict, "challenge already resolved")
	}

	challenge.Status = models.ChallengeDeclined
	payload, err := json.Marshal(challenge)
	if err != nil {
		return nil, fmt.Errorf("encode challenge: %w", err)
	}
	if _, err := c.store.CompareAndSwap(ctx, ChallengePath(challengeID), payload, version); err != nil {
		if errors.Is(err, store.ErrVersionMismatch) {
			return nil, apperrors.Clone(apperrors.ErrConflict, "challenge already resolved")
		}
		return nil, fmt.Errorf("decline challenge: %w", err)
	}
	return challenge, nil
}

func (c *Coordinator) loadChallenge(ctx context.Context, challengeID string) (*models.XOChallenge, int64, error) {
	data, version, err := c.store.Get(ctx, ChallengePath(challengeID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, apperrors.Clone(apperrors.ErrNotFound, "challenge not found")
		}
		return nil, 0, fmt.Errorf("read challenge: %w", err)
	}
	var challenge models.XOChallenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, 0, fmt.Errorf("decode challenge %s: %w", challengeID, err)
	}
	return &challenge, version, nil
}
