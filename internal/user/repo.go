package user

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Repo users 表读写。
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, u *User) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("user repo not initialized")
	}
	return r.db.WithContext(ctx).Create(u).Error
}

// FindByUsername 按用户名查询；未命中透传 gorm.ErrRecordNotFound。
func (r *Repo) FindByUsername(ctx context.Context, username string) (*User, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("user repo not initialized")
	}
	var u User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
