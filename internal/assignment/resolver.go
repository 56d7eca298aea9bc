package assignment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/FleetAssign/FleetAssign/internal/common/logger"
)

// Resolver 回答“某时刻这辆车归谁用”一类的只读查询。
// 只消费 Store 的读路径，不做任何写入。
type Resolver struct {
	store Store
	log   logger.Logger
}

func NewResolver(store Store, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{store: store, log: log}
}

// ActiveAssignment 返回 asOf 时刻覆盖该车辆的占用记录；没有则返回 nil。
// 在不重叠不变量成立时命中至多一条；若查到多条说明底层数据已被绕过
// 校验写坏，取最早开始的一条并记录告警。
func (r *Resolver) ActiveAssignment(ctx context.Context, vehicleID string, asOf time.Time) (*Assignment, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("resolver not initialized")
	}
	existing, err := r.store.ListActive(ctx, vehicleID, "")
	if err != nil {
		return nil, err
	}

	var hits []*Assignment
	for i := range existing {
		if existing[i].Interval().Covers(asOf) {
			hits = append(hits, &existing[i])
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}
	if len(hits) > 1 {
		r.log.WithFields(map[string]interface{}{
			"vehicle_id": vehicleID,
			"as_of":      asOf.Format(time.RFC3339),
			"count":      len(hits),
		}).Warnf("multiple assignments cover the same instant, ledger data is corrupted")
	}

	best := hits[0]
	for _, h := range hits[1:] {
		if h.StartAt.Before(best.StartAt) {
			best = h
		}
	}
	return best, nil
}

// NextUpcoming 返回 asOf 之后最早开始的占用记录；没有则返回 nil。
// 严格 StartAt > asOf：恰好在 asOf 开始的记录属于“当前”，不算“即将到来”。
func (r *Resolver) NextUpcoming(ctx context.Context, vehicleID string, asOf time.Time) (*Assignment, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("resolver not initialized")
	}
	existing, err := r.store.ListActive(ctx, vehicleID, "")
	if err != nil {
		return nil, err
	}

	var next *Assignment
	for i := range existing {
		a := &existing[i]
		if !a.StartAt.After(asOf) {
			continue
		}
		if next == nil || a.StartAt.Before(next.StartAt) {
			next = a
		}
	}
	return next, nil
}

// OccupiedPeriods 返回 asOf 起仍有占用效力的记录（进行中 + 未来），
// 按开始时间升序。已经整体落在 asOf 之前的闭区间被过滤掉。
func (r *Resolver) OccupiedPeriods(ctx context.Context, vehicleID string, asOf time.Time) ([]Assignment, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("resolver not initialized")
	}
	existing, err := r.store.ListActive(ctx, vehicleID, "")
	if err != nil {
		return nil, err
	}

	out := make([]Assignment, 0, len(existing))
	for _, a := range existing {
		if a.EndAt != nil && !a.EndAt.After(asOf) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, nil
}
