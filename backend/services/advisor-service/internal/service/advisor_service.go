package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"smartcharge/backend/services/advisor-service/internal/advisory"
	"smartcharge/backend/services/advisor-service/internal/models"
	redisstore "smartcharge/backend/services/advisor-service/internal/redis"
)

var (
	// ErrUserRequired is returned when no caller identity is available.
	ErrUserRequired = errors.New("advisor: user id is required")
	// ErrInvalidGridConditions rejects incomplete grid snapshots.
	ErrInvalidGridConditions = errors.New("advisor: price tier and availability are required")
	// ErrGridStoreUnavailable is returned when no grid store is configured.
	ErrGridStoreUnavailable = errors.New("advisor: grid store is not configured")
)

// SessionReader supplies recent charging history.
type SessionReader interface {
	GetRecentSessionsByUser(ctx context.Context, userID string, limit int) ([]models.Session, error)
}

// GridConditionsStore persists the current grid snapshot.
type GridConditionsStore interface {
	Get(ctx context.Context) (*models.GridConditions, error)
	Save(ctx context.Context, conditions models.GridConditions) error
}

// Options tunes how recommendation input is assembled.
type Options struct {
	RecentSessionsLimit int
	DefaultGrid         models.GridConditions
}

// AdvisorService exposes the two advisory functions and assembles recommendation
// input from the record store for authenticated users.
type AdvisorService struct {
	patterns       *advisory.PatternAnalysis
	recommendation *advisory.Recommendation
	sessions       SessionReader
	grid           GridConditionsStore
	opts           Options
	logger         *zap.Logger
}

// NewAdvisorService builds service. sessions and grid may be nil when the record
// store is not configured; RecommendForUser then works from defaults only.
func NewAdvisorService(
	patterns *advisory.PatternAnalysis,
	recommendation *advisory.Recommendation,
	sessions SessionReader,
	grid GridConditionsStore,
	opts Options,
	logger *zap.Logger,
) *AdvisorService {
	if opts.RecentSessionsLimit <= 0 {
		opts.RecentSessionsLimit = 10
	}
	return &AdvisorService{
		patterns:       patterns,
		recommendation: recommendation,
		sessions:       sessions,
		grid:           grid,
		opts:           opts,
		logger:         logger,
	}
}

// AnalyzePatterns runs the charging pattern analysis.
func (s *AdvisorService) AnalyzePatterns(ctx context.Context, input any) (advisory.PatternAnalysisResult, error) {
	return s.patterns.Invoke(ctx, input)
}

// Recommend runs the recommendation function on caller supplied input.
func (s *AdvisorService) Recommend(ctx context.Context, input any) (advisory.RecommendationResult, error) {
	return s.recommendation.Invoke(ctx, input)
}

// RecommendForUser builds the recommendation request from the user's recent sessions
// and the current grid snapshot.
func (s *AdvisorService) RecommendForUser(ctx context.Context, userID string) (advisory.RecommendationResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return advisory.RecommendationResult{}, ErrUserRequired
	}

	req, err := s.BuildRecommendationRequest(ctx, userID)
	if err != nil {
		return advisory.RecommendationResult{}, err
	}
	return s.recommendation.Invoke(ctx, req)
}

// BuildRecommendationRequest serializes history and grid state the way the
// recommendation prompt expects them.
func (s *AdvisorService) BuildRecommendationRequest(ctx context.Context, userID string) (advisory.RecommendationRequest, error) {
	records := make([]models.SessionRecord, 0)
	if s.sessions != nil {
		sessions, err := s.sessions.GetRecentSessionsByUser(ctx, userID, s.opts.RecentSessionsLimit)
		if err != nil {
			return advisory.RecommendationRequest{}, fmt.Errorf("advisor: load sessions: %w", err)
		}
		for _, session := range sessions {
			records = append(records, session.Record())
		}
	}
	sessionsJSON, err := json.Marshal(records)
	if err != nil {
		return advisory.RecommendationRequest{}, fmt.Errorf("advisor: encode sessions: %w", err)
	}

	grid := s.GridConditions(ctx)
	gridJSON, err := json.Marshal(grid)
	if err != nil {
		return advisory.RecommendationRequest{}, fmt.Errorf("advisor: encode grid conditions: %w", err)
	}

	return advisory.RecommendationRequest{
		UserID:                 userID,
		RecentChargingSessions: string(sessionsJSON),
		CurrentGridConditions:  string(gridJSON),
	}, nil
}

// GridConditions returns the stored snapshot or the configured default.
func (s *AdvisorService) GridConditions(ctx context.Context) models.GridConditions {
	if s.grid == nil {
		return s.opts.DefaultGrid
	}
	conditions, err := s.grid.Get(ctx)
	if err != nil {
		if !errors.Is(err, redisstore.ErrGridConditionsNotFound) {
			s.logger.Warn("failed to read grid conditions, using default", zap.Error(err))
		}
		return s.opts.DefaultGrid
	}
	return *conditions
}

// UpdateGridConditions stores a new grid snapshot.
func (s *AdvisorService) UpdateGridConditions(ctx context.Context, conditions models.GridConditions) (models.GridConditions, error) {
	conditions.PriceTier = strings.TrimSpace(conditions.PriceTier)
	conditions.Availability = strings.TrimSpace(conditions.Availability)
	if conditions.PriceTier == "" || conditions.Availability == "" {
		return models.GridConditions{}, ErrInvalidGridConditions
	}
	if s.grid == nil {
		return models.GridConditions{}, ErrGridStoreUnavailable
	}

	now := time.Now().UTC()
	conditions.UpdatedAt = &now
	if err := s.grid.Save(ctx, conditions); err != nil {
		return models.GridConditions{}, err
	}
	s.logger.Info("grid conditions updated",
		zap.String("price_tier", conditions.PriceTier),
		zap.String("availability", conditions.Availability),
	)
	return conditions, nil
}
