package assignment

import (
	"context"
	"testing"
)

func seedResolver(t *testing.T) (*Resolver, *memStore) {
	t.Helper()
	store := newMemStore()
	ctx := context.Background()
	seed := []*Assignment{
		{ID: "past", VehicleID: "v1", UserID: "u1", StartAt: day(-10), EndAt: ptrTime(day(-5))},
		{ID: "current", VehicleID: "v1", UserID: "u2", StartAt: day(1), EndAt: ptrTime(day(5))},
		{ID: "future", VehicleID: "v1", UserID: "u3", StartAt: day(8), EndAt: ptrTime(day(9))},
		{ID: "ghost", VehicleID: "v1", UserID: "u4", StartAt: day(2), EndAt: ptrTime(day(4)), Cancelled: true},
	}
	for _, a := range seed {
		if err := store.Create(ctx, a); err != nil {
			t.Fatalf("seed %s: %v", a.ID, err)
		}
	}
	return NewResolver(store, nil), store
}

func TestResolverActiveAssignment(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	a, err := r.ActiveAssignment(ctx, "v1", day(3))
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if a == nil || a.ID != "current" {
		t.Fatalf("expected current, got %+v", a)
	}

	// 区间右端开放：day5 当刻已不在 [day1, day5) 内
	a, err = r.ActiveAssignment(ctx, "v1", day(5))
	if err != nil {
		t.Fatalf("active at boundary: %v", err)
	}
	if a != nil {
		t.Fatalf("boundary instant resolved to %s", a.ID)
	}

	// 空档返回 none，不是错误
	a, err = r.ActiveAssignment(ctx, "v1", day(6))
	if err != nil || a != nil {
		t.Fatalf("gap: a=%v err=%v", a, err)
	}

	// 没有任何记录的车辆同样返回 none
	a, err = r.ActiveAssignment(ctx, "unknown", day(3))
	if err != nil || a != nil {
		t.Fatalf("unknown vehicle: a=%v err=%v", a, err)
	}
}

func TestResolverActiveOpenEnded(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	if err := store.Create(ctx, &Assignment{ID: "open", VehicleID: "v1", UserID: "u1", StartAt: day(1)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := NewResolver(store, nil)

	a, err := r.ActiveAssignment(ctx, "v1", day(100))
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if a == nil || a.ID != "open" {
		t.Fatalf("open-ended assignment must cover any later instant, got %+v", a)
	}
}

func TestResolverNextUpcoming(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	a, err := r.NextUpcoming(ctx, "v1", day(0))
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if a == nil || a.ID != "current" {
		t.Fatalf("expected current as next, got %+v", a)
	}

	// 恰好在 asOf 开始的记录属于当前，不算即将到来
	a, err = r.NextUpcoming(ctx, "v1", day(1))
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if a == nil || a.ID != "future" {
		t.Fatalf("expected future, got %+v", a)
	}

	a, err = r.NextUpcoming(ctx, "v1", day(20))
	if err != nil || a != nil {
		t.Fatalf("past horizon: a=%v err=%v", a, err)
	}
}

func TestResolverOccupiedPeriods(t *testing.T) {
	r, _ := seedResolver(t)
	ctx := context.Background()

	periods, err := r.OccupiedPeriods(ctx, "v1", day(0))
	if err != nil {
		t.Fatalf("occupied: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	// 升序；过去的闭区间和已取消记录都被过滤
	if periods[0].ID != "current" || periods[1].ID != "future" {
		t.Fatalf("unexpected order: %s, %s", periods[0].ID, periods[1].ID)
	}

	periods, err = r.OccupiedPeriods(ctx, "v1", day(6))
	if err != nil {
		t.Fatalf("occupied: %v", err)
	}
	if len(periods) != 1 || periods[0].ID != "future" {
		t.Fatalf("expected only future, got %+v", periods)
	}
}
