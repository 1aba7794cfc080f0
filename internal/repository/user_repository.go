package repository

import (
	"context"
	"errors"
	"time"

	"quizhub_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs 批量查询，用于报表中展示用户名
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	users := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	var list []model.User
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, u := range list {
		users[u.ID] = u
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Save(user).Error
}

func (r *UserRepository) ExistsByRole(ctx context.Context, role model.UserRole) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where("role = ?", role).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ListPendingFaculty(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).
		Where("role = ? AND approval_status = ?", model.Faculty, model.ApprovalPending).
		Order("created_at ASC").
		Find(&users).Error
	return users, err
}

// SetApproval 仅在待审批状态下更新，返回是否命中
func (r *UserRepository) SetApproval(ctx context.Context, userID string, status model.ApprovalStatus, approverID, reason string, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND role = ? AND approval_status = ?", userID, model.Faculty, model.ApprovalPending).
		Updates(map[string]interface{}{
			"approval_status":  status,
			"is_approved":      status == model.ApprovalApproved,
			"approved_by":      approverID,
			"approved_at":      at,
			"rejection_reason": reason,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		UpdateColumn("last_login_at", at).Error
}

func (r *UserRepository) UpdateLastSeen(userID string) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).
		UpdateColumn("last_seen", time.Now()).Error
}

// FindByResetToken 按令牌摘要查找未过期的重置请求
func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).
		Where("password_reset_token = ? AND password_reset_expires > ?", tokenHash, now).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"password_reset_token":   tokenHash,
			"password_reset_expires": expires,
		}).Error
}

// ChangePassword 写入新密码并递增 token_version，同时清除重置令牌。
// tokenHash 非空时仅在令牌仍匹配时更新，保证重置链接只能用一次。
func (r *UserRepository) ChangePassword(ctx context.Context, userID, hashedPassword, tokenHash string, at time.Time) (bool, error) {
	q := r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID)
	if tokenHash != "" {
		q = q.Where("password_reset_token = ?", tokenHash)
	}
	res := q.Updates(map[string]interface{}{
		"password":               hashedPassword,
		"password_changed_at":    at,
		"password_reset_token":   "",
		"password_reset_expires": nil,
		"token_version":          gorm.Expr("token_version + 1"),
	})
	return res.RowsAffected == 1, res.Error
}
