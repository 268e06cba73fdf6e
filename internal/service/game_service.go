package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/quiz"
	"github.com/madrasati/madrasati-api/internal/store"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
)

type gameAccountRepository interface {
	FindNames(ctx context.Context, ids []string) (map[string]string, error)
}

// GameService reads the leaderboards the match coordinator writes.
type GameService struct {
	store    store.Store
	accounts gameAccountRepository
	logger   *zap.Logger
}

// NewGameService constructs a GameService instance.
func NewGameService(st store.Store, accounts gameAccountRepository, logger *zap.Logger) *GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameService{store: st, accounts: accounts, logger: logger}
}

// Leaderboard returns the top rows of one board. An empty subject selects
// the school-wide overall board.
func (s *GameService) Leaderboard(ctx context.Context, principalID, grade, subject string, limit int64) ([]models.XOGameScore, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	board := quiz.OverallBoard(principalID)
	if subject != "" {
		board = quiz.SubjectBoard(principalID, grade, subject)
	}
	entries, err := s.store.TopScores(ctx, board, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read leaderboard")
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.Member)
	}
	names, err := s.accounts.FindNames(ctx, ids)
	if err != nil {
		s.logger.Warn("leaderboard name lookup failed", zap.Error(err))
		names = map[string]string{}
	}

	scores := make([]models.XOGameScore, 0, len(entries))
	for _, entry := range entries {
		scores = append(scores, models.XOGameScore{
			StudentID:   entry.Member,
			StudentName: names[entry.Member],
			Points:      entry.Score,
		})
	}
	return scores, nil
}
