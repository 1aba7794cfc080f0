package repository

import (
	"context"
	"database/sql"
	"errors"

	"quizhub_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormAttemptStore struct {
	DB *gorm.DB
}

func NewGormAttemptStore(db *gorm.DB) *GormAttemptStore {
	return &GormAttemptStore{DB: db}
}

var attemptSlotColumns = []clause.Column{{Name: "quiz_id"}, {Name: "user_id"}, {Name: "attempt_no"}}

func (r *GormAttemptStore) InsertIfAbsent(ctx context.Context, attempt *model.Attempt) (*model.Attempt, bool, error) {
	db := r.DB.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{Columns: attemptSlotColumns, DoNothing: true}).Create(attempt)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return attempt, true, nil
	}

	// 冲突：返回占据该槽位的记录
	var existing model.Attempt
	err := db.Where("quiz_id = ? AND user_id = ? AND attempt_no = ?", attempt.QuizID, attempt.UserID, attempt.AttemptNo).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *GormAttemptStore) FindByID(ctx context.Context, id string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAttemptStore) CountByQuizAndUser(ctx context.Context, quizID, userID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Count(&count).Error
	return count, err
}

func (r *GormAttemptStore) MaxAttemptNo(ctx context.Context, quizID, userID string) (int, error) {
	var max sql.NullInt64
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Select("MAX(attempt_no)").
		Row().Scan(&max)
	if err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}

func (r *GormAttemptStore) FindInProgress(ctx context.Context, quizID, userID string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ? AND status = ?", quizID, userID, model.AttemptStatusInProgress).
		Order("attempt_no ASC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAttemptStore) CompleteIfInProgress(ctx context.Context, attempt *model.Attempt) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attempt.ID, model.AttemptStatusInProgress).
		Updates(map[string]interface{}{
			"status":        model.AttemptStatusCompleted,
			"score":         attempt.Score,
			"time_spent_ms": attempt.TimeSpentMs,
			"answers":       attempt.Answers,
			"finished_at":   attempt.FinishedAt,
			"graded_at":     attempt.GradedAt,
			"auto_graded":   attempt.AutoGraded,
			"graded_by":     attempt.GradedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormAttemptStore) UpdateGrade(ctx context.Context, attempt *model.Attempt) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attempt.ID, model.AttemptStatusCompleted).
		Updates(map[string]interface{}{
			"score":       attempt.Score,
			"answers":     attempt.Answers,
			"graded_at":   attempt.GradedAt,
			"auto_graded": attempt.AutoGraded,
			"graded_by":   attempt.GradedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormAttemptStore) ListByQuizAndUser(ctx context.Context, quizID, userID string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("attempt_no ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *GormAttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("started_at ASC").
		Find(&attempts).Error
	return attempts, err
}

type attemptSummaryRow struct {
	QuizID    string
	Total     int
	Completed int
	BestScore *int
}

func (r *GormAttemptStore) SummariesForUser(ctx context.Context, userID string) (map[string]model.AttemptSummary, error) {
	var rows []attemptSummaryRow
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Select("quiz_id, COUNT(*) AS total, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed, "+
			"MAX(CASE WHEN status = ? THEN score END) AS best_score",
			model.AttemptStatusCompleted, model.AttemptStatusCompleted).
		Where("user_id = ?", userID).
		Group("quiz_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summaries := make(map[string]model.AttemptSummary, len(rows))
	for _, row := range rows {
		summaries[row.QuizID] = model.AttemptSummary{
			QuizID:    row.QuizID,
			Total:     row.Total,
			Completed: row.Completed,
			BestScore: row.BestScore,
		}
	}
	return summaries, nil
}

func (r *GormAttemptStore) CountInProgress(ctx context.Context, quizIDs []string) (int64, error) {
	if len(quizIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("quiz_id IN ? AND status = ?", quizIDs, model.AttemptStatusInProgress).
		Count(&count).Error
	return count, err
}

func (r *GormAttemptStore) DeleteByQuiz(ctx context.Context, quizID string) error {
	return r.DB.WithContext(ctx).Unscoped().Where("quiz_id = ?", quizID).Delete(&model.Attempt{}).Error
}
