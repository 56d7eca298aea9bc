package assignment

import "time"

// Interval 左闭右开时间区间 [Start, End)。
// End 为 nil 表示开放式占用（无限期，直到显式归还）。
type Interval struct {
	Start time.Time
	End   *time.Time
}

// NewInterval 创建闭区间。
func NewInterval(start, end time.Time) Interval {
	e := end
	return Interval{Start: start, End: &e}
}

// NewOpenInterval 创建开放式区间（不定期用车）。
func NewOpenInterval(start time.Time) Interval {
	return Interval{Start: start}
}

// IsOpen 是否为开放式区间。
func (iv Interval) IsOpen() bool {
	return iv.End == nil
}

// Validate 校验区间合法性：Start 必填；End 存在时必须严格晚于 Start。
func (iv Interval) Validate() error {
	if iv.Start.IsZero() {
		return ErrInvalidInterval
	}
	if iv.End != nil && !iv.End.After(iv.Start) {
		return ErrInvalidInterval
	}
	return nil
}

// Covers 判断时刻 t 是否落在区间内（含起点，不含终点）。
func (iv Interval) Covers(t time.Time) bool {
	if t.Before(iv.Start) {
		return false
	}
	return iv.End == nil || iv.End.After(t)
}

// Overlaps 判断两个区间是否冲突。
//
// 语义：
//   - 闭区间 vs 闭区间：标准半开区间判定 s1 < e2 && s2 < e1，
//     边界相等（首尾相接）不算冲突，允许还车后立刻再派
//   - 双方都开放式：必然冲突
//   - 一方开放式：开放式区间从其起点起无限期占用车辆，
//     起点不早于它的任何区间、以及结束时间晚于它起点的任何区间都冲突。
//     这是刻意保守的规则：不定期用车没有可知的归还时间，
//     不能默许在它“之后”再排定有限期的用车
func (iv Interval) Overlaps(other Interval) bool {
	switch {
	case iv.End == nil && other.End == nil:
		return true
	case iv.End == nil:
		return other.End.After(iv.Start) || !other.Start.Before(iv.Start)
	case other.End == nil:
		return iv.End.After(other.Start) || !iv.Start.Before(other.Start)
	default:
		return iv.Start.Before(*other.End) && other.Start.Before(*iv.End)
	}
}

// FindConflict 在 existing 中查找与 candidate 冲突的第一条有效占用。
// excludeID 用于修订场景（把记录自身排除在外）；无冲突时返回 nil。
func FindConflict(candidate Interval, existing []Assignment, excludeID string) *Assignment {
	for i := range existing {
		a := &existing[i]
		if a.Cancelled {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if candidate.Overlaps(a.Interval()) {
			return a
		}
	}
	return nil
}

// VerifyNoOverlap 校验一组占用记录两两不冲突（忽略已取消的记录）。
// 返回第一对冲突记录的指针；无冲突返回 nil, nil。
func VerifyNoOverlap(assignments []Assignment) (*Assignment, *Assignment) {
	for i := range assignments {
		if assignments[i].Cancelled {
			continue
		}
		for j := i + 1; j < len(assignments); j++ {
			if assignments[j].Cancelled {
				continue
			}
			if assignments[i].Interval().Overlaps(assignments[j].Interval()) {
				return &assignments[i], &assignments[j]
			}
		}
	}
	return nil, nil
}
