package assignment

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo 基于 GORM 的 Store 实现。
type Repo struct {
	db *gorm.DB
}

var _ Store = (*Repo)(nil)

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) activeQuery(ctx context.Context, vehicleID, excludeID string) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&Assignment{}).
		Where("vehicle_id = ? AND cancelled = ?", vehicleID, false)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	return q.Order("start_at ASC")
}

func (r *Repo) ListActive(ctx context.Context, vehicleID, excludeID string) ([]Assignment, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("assignment repo not initialized")
	}
	var out []Assignment
	if err := r.activeQuery(ctx, vehicleID, excludeID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return out, nil
}

// ListActiveLocked 在事务内用 FOR UPDATE 锁住车辆的有效记录，
// 事务提交前其它写入方会被阻塞。仅在 Mutate 的事务内调用才有意义。
func (r *Repo) ListActiveLocked(ctx context.Context, vehicleID, excludeID string) ([]Assignment, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("assignment repo not initialized")
	}
	var out []Assignment
	err := r.activeQuery(ctx, vehicleID, excludeID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active assignments for update: %w", err)
	}
	return out, nil
}

func (r *Repo) ListByVehicle(ctx context.Context, vehicleID string, offset, limit int) ([]Assignment, int64, error) {
	if r == nil || r.db == nil {
		return nil, 0, fmt.Errorf("assignment repo not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := r.db.WithContext(ctx).Model(&Assignment{}).Where("vehicle_id = ?", vehicleID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	var out []Assignment
	err := q.Order("start_at DESC").Offset(offset).Limit(limit).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}
	return out, total, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Assignment, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("assignment repo not initialized")
	}
	var a Assignment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &a, nil
}

func (r *Repo) Create(ctx context.Context, a *Assignment) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("assignment repo not initialized")
	}
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, a *Assignment) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("assignment repo not initialized")
	}
	if err := r.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}
	return nil
}

// Mutate 在数据库事务中执行 fn，fn 拿到的是绑定事务连接的 Store。
func (r *Repo) Mutate(ctx context.Context, fn func(tx Store) error) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("assignment repo not initialized")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}
