package assignment

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInterval 区间非法（end <= start 或 start 缺失），在任何冲突检测之前拒绝。
	ErrInvalidInterval = errors.New("invalid interval: end must be after start")

	// ErrNotFound 占用记录不存在（或已取消、不再参与调度）。
	ErrNotFound = errors.New("assignment not found")

	// ErrVehicleNotFound 引用的车辆不存在。
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrNotOpen 对已登记归还时间的记录再次收口。
	ErrNotOpen = errors.New("assignment is not open")

	// ErrInvalidOdometer 还车里程小于出车里程。
	ErrInvalidOdometer = errors.New("end odometer must not be less than start odometer")

	// ErrInvariantViolation 已通过的提案在提交时仍撞上并发写入。
	// 按可重试冲突返回给调用方，同时记录告警（视为竞态信号，不会被吞掉）。
	ErrInvariantViolation = errors.New("no-overlap invariant violated at commit")
)

// ConflictError 区间冲突，携带被撞上的占用记录信息，
// 便于调用方提示“车辆在 xx 之前/起被占用”。
type ConflictError struct {
	ConflictingID string
	Start         time.Time
	End           *time.Time
}

func (e *ConflictError) Error() string {
	if e.End == nil {
		return fmt.Sprintf("interval conflicts with open-ended assignment %s starting at %s",
			e.ConflictingID, e.Start.Format(time.RFC3339))
	}
	return fmt.Sprintf("interval conflicts with assignment %s [%s, %s)",
		e.ConflictingID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func newConflictError(a *Assignment) *ConflictError {
	return &ConflictError{
		ConflictingID: a.ID,
		Start:         a.StartAt,
		End:           a.EndAt,
	}
}

// IsConflict 判断错误是否为区间冲突（含提交竞态场景）。
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
