package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/FleetAssign/FleetAssign/internal/common/lock"
	"github.com/FleetAssign/FleetAssign/internal/common/logger"
)

// Store 占用记录的持久化端口。
// 冲突判定本身是纯函数（interval.go），Store 只负责读写，
// 因此 Ledger 可以脱离数据库做单元测试。
type Store interface {
	// ListActive 返回车辆的全部未取消记录（按 start_at 升序），excludeID 非空时排除该条。
	ListActive(ctx context.Context, vehicleID, excludeID string) ([]Assignment, error)
	// ListActiveLocked 同 ListActive，但在事务内持有行锁（提交前的终检使用）。
	ListActiveLocked(ctx context.Context, vehicleID, excludeID string) ([]Assignment, error)
	// ListByVehicle 返回车辆的全部记录（含已取消，历史视图），按 start_at 降序分页。
	ListByVehicle(ctx context.Context, vehicleID string, offset, limit int) ([]Assignment, int64, error)
	Get(ctx context.Context, id string) (*Assignment, error)
	Create(ctx context.Context, a *Assignment) error
	Save(ctx context.Context, a *Assignment) error
	// Mutate 在单个事务中执行 fn；fn 返回错误时整体回滚。
	Mutate(ctx context.Context, fn func(tx Store) error) error
}

// Decision 提案裁决结果。
type Decision struct {
	Accepted    bool
	Conflicting *Assignment // 拒绝时携带撞上的记录
}

// Ledger 单辆车占用区间集合的唯一裁决方。
// 所有写操作都在“车辆级互斥锁 + 事务内终检”下执行：
// 锁保证同一辆车的校验与提交是原子单元，不同车辆完全并行。
type Ledger struct {
	store  Store
	locker lock.ResourceLocker
	log    logger.Logger
	now    func() time.Time
}

// NewLedger 创建 Ledger。locker 为 nil 时退化为进程内锁。
func NewLedger(store Store, locker lock.ResourceLocker, log logger.Logger) *Ledger {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		store:  store,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// Propose 纯裁决：判断区间能否落在车辆现有占用之间，不做任何写入。
// excludeID 用于修订场景（把记录自身排除在外）。
func (l *Ledger) Propose(ctx context.Context, vehicleID string, iv Interval, excludeID string) (Decision, error) {
	if l == nil || l.store == nil {
		return Decision{}, fmt.Errorf("ledger not initialized")
	}
	if err := iv.Validate(); err != nil {
		return Decision{}, err
	}
	existing, err := l.store.ListActive(ctx, vehicleID, excludeID)
	if err != nil {
		return Decision{}, err
	}
	if c := FindConflict(iv, existing, excludeID); c != nil {
		return Decision{Conflicting: c}, nil
	}
	return Decision{Accepted: true}, nil
}

// Insert 写入新占用记录。
// 即使调用方已经拿到 Accepted 裁决，提交路径仍会在锁内重新校验一次：
// 两次校验之间可能有并发写入，终检失败返回 *ConflictError。
func (l *Ledger) Insert(ctx context.Context, a *Assignment) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialized")
	}
	if a == nil {
		return fmt.Errorf("assignment is nil")
	}
	iv := a.Interval()
	if err := iv.Validate(); err != nil {
		return err
	}

	release, err := l.locker.Acquire(ctx, a.VehicleID)
	if err != nil {
		return fmt.Errorf("acquire vehicle lock: %w", err)
	}
	defer release()

	return l.store.Mutate(ctx, func(tx Store) error {
		existing, err := tx.ListActiveLocked(ctx, a.VehicleID, "")
		if err != nil {
			return err
		}
		if c := FindConflict(iv, existing, ""); c != nil {
			return newConflictError(c)
		}
		return tx.Create(ctx, a)
	})
}

// Close 给开放式记录登记归还时间，把区间收口为 [StartAt, end)。
// 收口后的闭区间可能撞上此前基于“会更早归还”的假设而放行的预约，
// 因此提交前必须重新裁决（排除自身）；冲突时整体回滚。
// 已取消的记录仍可收口（补登历史归还时间），但同样要过重新裁决。
// apply 在同一事务内修改归还相关元数据（里程、备注等）。
func (l *Ledger) Close(ctx context.Context, id string, end time.Time, apply func(a *Assignment) error) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialized")
	}

	cur, err := l.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if cur.EndAt != nil {
		return ErrNotOpen
	}

	release, err := l.locker.Acquire(ctx, cur.VehicleID)
	if err != nil {
		return fmt.Errorf("acquire vehicle lock: %w", err)
	}
	defer release()

	return l.store.Mutate(ctx, func(tx Store) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if a.EndAt != nil {
			return ErrNotOpen
		}

		iv := NewInterval(a.StartAt, end)
		if err := iv.Validate(); err != nil {
			return err
		}
		existing, err := tx.ListActiveLocked(ctx, a.VehicleID, a.ID)
		if err != nil {
			return err
		}
		if c := FindConflict(iv, existing, a.ID); c != nil {
			return newConflictError(c)
		}

		e := end
		a.EndAt = &e
		if apply != nil {
			if err := apply(a); err != nil {
				return err
			}
		}
		return tx.Save(ctx, a)
	})
}

// Cancel 软删除：记录退出所有冲突与归属计算，但保留历史。
// 对已取消的记录重复取消是幂等 no-op。
func (l *Ledger) Cancel(ctx context.Context, id string) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialized")
	}

	cur, err := l.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if cur.Cancelled {
		return nil
	}

	release, err := l.locker.Acquire(ctx, cur.VehicleID)
	if err != nil {
		return fmt.Errorf("acquire vehicle lock: %w", err)
	}
	defer release()

	return l.store.Mutate(ctx, func(tx Store) error {
		a, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if a.Cancelled {
			return nil
		}
		now := l.now()
		a.Cancelled = true
		a.CancelledAt = &now
		return tx.Save(ctx, a)
	})
}
