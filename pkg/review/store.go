package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
	"github.com/xhad/yatra/pkg/logging"
)

const (
	MaxNameLength   = 100
	MaxReviewLength = 500
	MinRating       = 1
	MaxRating       = 5
)

// JSONStore keeps reviews as one JSON array in a file. Save rewrites the whole
// file; concurrent writers race and the last one wins.
type JSONStore struct {
	path string
	log  *zap.Logger
}

var _ types.ReviewStore = (*JSONStore)(nil)

func NewJSONStore(path string, logger *zap.Logger) *JSONStore {
	return &JSONStore{path: path, log: logging.OrNop(logger)}
}

// Load returns the stored reviews in submission order. A missing or corrupt
// file reads as empty.
func (s *JSONStore) Load() []models.Review {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("failed to read reviews", zap.String("path", s.path), zap.Error(err))
		}
		return []models.Review{}
	}

	var reviews []models.Review
	if err := json.Unmarshal(data, &reviews); err != nil {
		s.log.Error("returning empty reviews",
			zap.String("path", s.path),
			zap.Error(fmt.Errorf("%w: %v", types.ErrCorruptReviewStore, err)))
		return []models.Review{}
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews
}

// Save appends review as given and rewrites the file.
func (s *JSONStore) Save(review models.Review) error {
	if err := Validate(review); err != nil {
		return err
	}

	reviews := append(s.Load(), review)
	data, err := json.MarshalIndent(reviews, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reviews: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write reviews: %w", err)
	}

	s.log.Info("review saved", zap.String("name", review.Name), zap.Int("rating", review.Rating))
	return nil
}

// Validate reports the first problem with review, wrapped in types.ErrReviewValidation.
func Validate(review models.Review) error {
	switch {
	case strings.TrimSpace(review.Name) == "" || strings.TrimSpace(review.Review) == "":
		return fmt.Errorf("%w: Please fill in all fields before submitting.", types.ErrReviewValidation)
	case utf8.RuneCountInString(review.Name) > MaxNameLength:
		return fmt.Errorf("%w: name is longer than %d characters", types.ErrReviewValidation, MaxNameLength)
	case utf8.RuneCountInString(review.Review) > MaxReviewLength:
		return fmt.Errorf("%w: review is longer than %d characters", types.ErrReviewValidation, MaxReviewLength)
	case review.Rating < MinRating || review.Rating > MaxRating:
		return fmt.Errorf("%w: rating must be between %d and %d", types.ErrReviewValidation, MinRating, MaxRating)
	}
	return nil
}

// Rows groups reviews into rows of n for display.
func Rows(reviews []models.Review, n int) [][]models.Review {
	if n <= 0 {
		n = 3
	}
	var rows [][]models.Review
	for i := 0; i < len(reviews); i += n {
		end := i + n
		if end > len(reviews) {
			end = len(reviews)
		}
		rows = append(rows, reviews[i:end])
	}
	return rows
}
