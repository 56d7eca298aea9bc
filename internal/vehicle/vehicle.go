package vehicle

import (
	"time"
)

// 车辆运营状态
const (
	StatusAvailable = "available" // 可调度
	StatusInService = "in_service" // 维修/保养中，暂不可调度
	StatusRetired   = "retired"    // 已退役
)

// 车辆归属类型
const (
	OwnerKindCompany  = "company"  // 公司自有
	OwnerKindLeased   = "leased"   // 租赁
	OwnerKindPersonal = "personal" // 员工私车公用
)

// Vehicle 是 vehicles 表的 GORM 模型。
// 调度核心只读取该表校验车辆存在性，不在调度流程中修改它。
type Vehicle struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	PlateNumber string    `gorm:"uniqueIndex;size:32;not null" json:"plate_number"`
	VIN         string    `gorm:"size:64" json:"vin,omitempty"`
	Model       string    `gorm:"size:64" json:"model,omitempty"`
	OwnerKind   string    `gorm:"size:16;not null;default:'company'" json:"owner_kind"` // company / leased / personal
	OwnerID     string    `gorm:"index;size:36" json:"owner_id,omitempty"`
	Status      string    `gorm:"size:16;not null" json:"status"` // available / in_service / retired
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
