package repository

import (
	"context"
	"errors"
	"time"

	"quizhub_backend/internal/model"

	"gorm.io/gorm"
)

type GormQuizStore struct {
	DB *gorm.DB
}

func NewGormQuizStore(db *gorm.DB) *GormQuizStore {
	return &GormQuizStore{DB: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *GormQuizStore) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

func (r *GormQuizStore) Update(ctx context.Context, quiz *model.Quiz, replaceQuestions bool) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(quiz).
			Select("subject_id", "title", "description", "attempt_type", "max_attempts",
				"start_time", "end_time", "duration_minutes", "assigned_to").
			Updates(quiz).Error
		if err != nil {
			return err
		}

		if !replaceQuestions {
			return nil
		}
		if err := tx.Unscoped().Where("quiz_id = ?", quiz.ID).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		for i := range quiz.Questions {
			quiz.Questions[i].QuizID = quiz.ID
		}
		if len(quiz.Questions) == 0 {
			return nil
		}
		return tx.Create(&quiz.Questions).Error
	})
}

func (r *GormQuizStore) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("quiz_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Quiz{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *GormQuizStore) FindByID(ctx context.Context, id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).Preload("Questions", orderedQuestions).Where("id = ?", id).First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *GormQuizStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.WithContext(ctx).Preload("Questions", orderedQuestions).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

func (r *GormQuizStore) ListAll(ctx context.Context) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.WithContext(ctx).Preload("Questions", orderedQuestions).
		Order("start_time DESC").
		Find(&quizzes).Error
	return quizzes, err
}

func (r *GormQuizStore) ListEndedIDs(ctx context.Context, before time.Time) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("end_time < ?", before).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *GormQuizStore) IncrementAttemptCount(ctx context.Context, id string) error {
	return r.increment(ctx, id, "attempt_count")
}

func (r *GormQuizStore) IncrementCompletedCount(ctx context.Context, id string) error {
	return r.increment(ctx, id, "completed_count")
}

func (r *GormQuizStore) increment(ctx context.Context, id, column string) error {
	return r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}
