package model

import (
	"time"
)

type UserRole string

const (
	Student    UserRole = "student"
	Faculty    UserRole = "faculty"
	Superadmin UserRole = "superadmin"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// swagger:model User
type User struct {
	UUIDBase
	FullName        string         `gorm:"size:100;not null" json:"fullName"`
	Email           string         `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password        string         `gorm:"size:100;not null" json:"-"`
	Role            UserRole       `gorm:"size:20;index;default:'student'" json:"role"`
	IsVerified      bool           `gorm:"default:false" json:"isVerified"`
	IsApproved      bool           `gorm:"default:false" json:"isApproved"`
	ApprovalStatus  ApprovalStatus `gorm:"size:20;default:'pending'" json:"approvalStatus"`
	ApprovedBy      *string        `gorm:"type:varchar(36)" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time     `json:"approvedAt,omitempty"`
	RejectionReason string         `gorm:"size:255" json:"rejectionReason,omitempty"`
	IsActive        bool           `gorm:"default:true" json:"isActive"`
	LastLoginAt     *time.Time     `json:"lastLoginAt,omitempty"`
	LastSeen        *time.Time     `json:"lastSeen,omitempty"`

	// 修改或重置密码时递增，旧令牌随之失效
	TokenVersion         int        `gorm:"default:0" json:"-"`
	PasswordChangedAt    *time.Time `json:"passwordChangedAt,omitempty"`
	PasswordResetToken   string     `gorm:"size:64;index" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

func ParseRole(s string) (UserRole, bool) {
	switch UserRole(s) {
	case Student, Faculty, Superadmin:
		return UserRole(s), true
	}
	return "", false
}
