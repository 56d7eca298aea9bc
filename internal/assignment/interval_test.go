package assignment

import (
	"errors"
	"testing"
	"time"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return base.AddDate(0, 0, n)
}

func closed(startDay, endDay int) Interval {
	return NewInterval(day(startDay), day(endDay))
}

func open(startDay int) Interval {
	return NewOpenInterval(day(startDay))
}

func TestIntervalValidate(t *testing.T) {
	if err := closed(1, 3).Validate(); err != nil {
		t.Fatalf("valid interval rejected: %v", err)
	}
	if err := open(1).Validate(); err != nil {
		t.Fatalf("open interval rejected: %v", err)
	}
	if err := closed(3, 3).Validate(); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("zero-length interval accepted, err=%v", err)
	}
	if err := closed(3, 1).Validate(); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("reversed interval accepted, err=%v", err)
	}
	if err := (Interval{}).Validate(); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("zero start accepted, err=%v", err)
	}
}

func TestIntervalOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", closed(1, 3), closed(5, 7), false},
		{"partial overlap", closed(1, 5), closed(3, 7), true},
		{"containment", closed(1, 10), closed(3, 5), true},
		{"identical", closed(1, 5), closed(1, 5), true},
		{"adjacent end to start", closed(1, 3), closed(3, 5), false},
		{"adjacent start to end", closed(3, 5), closed(1, 3), false},
		{"same start", closed(2, 4), closed(2, 9), true},

		// 开放式区间无限期占用：起点之后不允许任何排期
		{"open vs open", open(1), open(9), true},
		{"open blocks later closed", open(5), closed(7, 9), true},
		{"open blocks overlapping earlier closed", open(5), closed(3, 6), true},
		{"open allows fully earlier closed", open(5), closed(1, 5), false},
		{"closed ending at open start", closed(1, 5), open(5), false},
		{"closed after open start", closed(7, 9), open(5), true},
		{"closed straddling open start", closed(3, 6), open(5), true},
	}

	for _, tc := range cases {
		if got := tc.a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%s: Overlaps=%v, want %v", tc.name, got, tc.want)
		}
		// 对称性
		if got := tc.b.Overlaps(tc.a); got != tc.want {
			t.Errorf("%s (reversed): Overlaps=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIntervalCovers(t *testing.T) {
	iv := closed(2, 5)
	if !iv.Covers(day(2)) {
		t.Fatalf("start instant not covered")
	}
	if iv.Covers(day(5)) {
		t.Fatalf("end instant covered, interval is half-open")
	}
	if iv.Covers(day(1)) {
		t.Fatalf("instant before start covered")
	}
	if !open(2).Covers(day(100)) {
		t.Fatalf("open interval must cover any future instant")
	}
}

func TestFindConflict(t *testing.T) {
	existing := []Assignment{
		{ID: "a1", VehicleID: "v1", StartAt: day(1), EndAt: ptrTime(day(3))},
		{ID: "a2", VehicleID: "v1", StartAt: day(5), EndAt: ptrTime(day(7)), Cancelled: true},
		{ID: "a3", VehicleID: "v1", StartAt: day(8), EndAt: ptrTime(day(10))},
	}

	if c := FindConflict(closed(3, 5), existing, ""); c != nil {
		t.Fatalf("adjacent interval flagged as conflict with %s", c.ID)
	}
	// 已取消的记录不参与冲突
	if c := FindConflict(closed(5, 7), existing, ""); c != nil {
		t.Fatalf("cancelled assignment caused conflict: %s", c.ID)
	}
	c := FindConflict(closed(9, 12), existing, "")
	if c == nil || c.ID != "a3" {
		t.Fatalf("expected conflict with a3, got %v", c)
	}
	// excludeID 把自身排除在外
	if c := FindConflict(closed(9, 12), existing, "a3"); c != nil {
		t.Fatalf("excluded assignment still conflicts: %s", c.ID)
	}
}

func TestVerifyNoOverlap(t *testing.T) {
	ok := []Assignment{
		{ID: "a1", StartAt: day(1), EndAt: ptrTime(day(3))},
		{ID: "a2", StartAt: day(3), EndAt: ptrTime(day(5))},
		{ID: "a3", StartAt: day(2), EndAt: ptrTime(day(9)), Cancelled: true},
	}
	if x, y := VerifyNoOverlap(ok); x != nil || y != nil {
		t.Fatalf("clean set flagged: %v vs %v", x, y)
	}

	bad := []Assignment{
		{ID: "a1", StartAt: day(1), EndAt: ptrTime(day(4))},
		{ID: "a2", StartAt: day(3), EndAt: ptrTime(day(5))},
	}
	x, y := VerifyNoOverlap(bad)
	if x == nil || y == nil {
		t.Fatalf("overlapping set passed verification")
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt64(v int64) *int64 { return &v }
