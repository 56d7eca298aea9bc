package assignment

import "time"

// 用车事由编码（持久化为字符串）。
const (
	ReasonBusiness    = "business"    // 公务出行
	ReasonMaintenance = "maintenance" // 送修/保养
	ReasonRelocation  = "relocation"  // 调拨/转场
	ReasonOther       = "other"
)

// Assignment 车辆占用记录的 GORM 模型。
// 同一辆车的所有未取消记录必须两两不重叠（§语义见 interval.go）。
// 取消是软删除：记录保留作为历史，但不再参与任何冲突与归属计算。
type Assignment struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// 业务关联
	VehicleID string `gorm:"index;size:36;not null" json:"vehicle_id"` // 被占用车辆
	UserID    string `gorm:"index;size:36;not null" json:"user_id"`    // 用车人

	// 占用区间：EndAt 为空表示不定期用车（开放式）
	StartAt time.Time  `gorm:"not null;index" json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	// 领域元数据
	Reason        string `gorm:"size:32" json:"reason,omitempty"` // 用车事由编码
	StartOdometer *int64 `json:"start_odometer,omitempty"`        // 出车里程表读数
	EndOdometer   *int64 `json:"end_odometer,omitempty"`          // 还车里程表读数
	Note          string `gorm:"size:255" json:"note,omitempty"`

	// 生命周期
	Cancelled   bool       `gorm:"index;not null;default:false" json:"cancelled"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// 审计
	CreatedBy string    `gorm:"size:36" json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Interval 返回记录对应的占用区间。
func (a *Assignment) Interval() Interval {
	return Interval{Start: a.StartAt, End: a.EndAt}
}

// IsOpen 未取消且尚未登记归还时间。
func (a *Assignment) IsOpen() bool {
	return !a.Cancelled && a.EndAt == nil
}
