package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FleetAssign/FleetAssign/internal/common/logger"
	"github.com/FleetAssign/FleetAssign/internal/common/metrics"
)

// VehicleDirectory 车辆存在性校验端口（由 vehicle 包实现）。
type VehicleDirectory interface {
	Exists(ctx context.Context, vehicleID string) (bool, error)
}

// Service 派车调度的业务编排层：
// 校验输入 → 外键检查 → Ledger 裁决/提交 → 指标上报。
type Service struct {
	store    Store
	ledger   *Ledger
	resolver *Resolver
	vehicles VehicleDirectory
	log      logger.Logger
	metrics  *metrics.Recorder
	now      func() time.Time
}

func NewService(store Store, ledger *Ledger, resolver *Resolver, vehicles VehicleDirectory, log logger.Logger, rec *metrics.Recorder) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		ledger:   ledger,
		resolver: resolver,
		vehicles: vehicles,
		log:      log,
		metrics:  rec,
		now:      time.Now,
	}
}

// CreateAssignmentInput 新建派车请求。EndAt 为空表示不定期用车。
type CreateAssignmentInput struct {
	VehicleID     string
	UserID        string
	StartAt       time.Time
	EndAt         *time.Time
	Reason        string
	StartOdometer *int64
	Note          string
	CreatedBy     string
}

// CloseAssignmentInput 还车请求。
type CloseAssignmentInput struct {
	EndAt       time.Time
	EndOdometer *int64
	Note        string
}

// CreateAssignment 新建派车记录。
// 冲突返回 *ConflictError；车辆不存在返回 ErrVehicleNotFound。
// 提案通过后提交仍失败的竞态按 ErrInvariantViolation 包装后返回，
// 对调用方仍是可重试的冲突。
func (s *Service) CreateAssignment(ctx context.Context, in CreateAssignmentInput) (*Assignment, error) {
	if s == nil || s.ledger == nil {
		return nil, fmt.Errorf("assignment service not initialized")
	}

	in.VehicleID = strings.TrimSpace(in.VehicleID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.VehicleID == "" || in.UserID == "" {
		s.metrics.RecordDecision("create", "invalid")
		return nil, fmt.Errorf("vehicle_id and user_id are required")
	}

	iv := Interval{Start: in.StartAt, End: in.EndAt}
	if err := iv.Validate(); err != nil {
		s.metrics.RecordDecision("create", "invalid")
		return nil, err
	}

	if s.vehicles != nil {
		ok, err := s.vehicles.Exists(ctx, in.VehicleID)
		if err != nil {
			s.metrics.RecordDecision("create", "error")
			return nil, fmt.Errorf("check vehicle: %w", err)
		}
		if !ok {
			s.metrics.RecordDecision("create", "not_found")
			return nil, ErrVehicleNotFound
		}
	}

	decision, err := s.ledger.Propose(ctx, in.VehicleID, iv, "")
	if err != nil {
		s.metrics.RecordDecision("create", "error")
		return nil, err
	}
	if !decision.Accepted {
		s.metrics.RecordDecision("create", "conflict")
		return nil, newConflictError(decision.Conflicting)
	}

	a := &Assignment{
		ID:            uuid.NewString(),
		VehicleID:     in.VehicleID,
		UserID:        in.UserID,
		StartAt:       in.StartAt,
		EndAt:         in.EndAt,
		Reason:        strings.TrimSpace(in.Reason),
		StartOdometer: in.StartOdometer,
		Note:          strings.TrimSpace(in.Note),
		CreatedBy:     strings.TrimSpace(in.CreatedBy),
	}

	if err := s.ledger.Insert(ctx, a); err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			// 提案和提交之间有并发写入挤了进来，
			// 记录竞态信号，对外仍按冲突处理
			s.log.WithFields(map[string]interface{}{
				"vehicle_id":     in.VehicleID,
				"conflicting_id": ce.ConflictingID,
			}).Warnf("accepted proposal lost the commit race")
			s.metrics.RecordInvariantViolation()
			s.metrics.RecordDecision("create", "conflict")
			return nil, errors.Join(ErrInvariantViolation, ce)
		}
		s.metrics.RecordDecision("create", "error")
		return nil, err
	}

	s.metrics.RecordDecision("create", "accepted")
	s.log.WithFields(map[string]interface{}{
		"assignment_id": a.ID,
		"vehicle_id":    a.VehicleID,
		"user_id":       a.UserID,
	}).Infof("assignment created")
	return a, nil
}

// CloseAssignment 还车：收口开放式记录并登记还车里程。
// 收口后的区间撞上后续预约时返回 *ConflictError，记录保持开放。
func (s *Service) CloseAssignment(ctx context.Context, id string, in CloseAssignmentInput) (*Assignment, error) {
	if s == nil || s.ledger == nil {
		return nil, fmt.Errorf("assignment service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		s.metrics.RecordDecision("close", "invalid")
		return nil, ErrNotFound
	}

	var closed *Assignment
	err := s.ledger.Close(ctx, id, in.EndAt, func(a *Assignment) error {
		if in.EndOdometer != nil {
			if a.StartOdometer != nil && *in.EndOdometer < *a.StartOdometer {
				return ErrInvalidOdometer
			}
			a.EndOdometer = in.EndOdometer
		}
		if note := strings.TrimSpace(in.Note); note != "" {
			a.Note = note
		}
		closed = a
		return nil
	})
	if err != nil {
		switch {
		case IsConflict(err):
			s.metrics.RecordDecision("close", "conflict")
		case errors.Is(err, ErrNotFound):
			s.metrics.RecordDecision("close", "not_found")
		case errors.Is(err, ErrNotOpen), errors.Is(err, ErrInvalidInterval), errors.Is(err, ErrInvalidOdometer):
			s.metrics.RecordDecision("close", "invalid")
		default:
			s.metrics.RecordDecision("close", "error")
		}
		return nil, err
	}

	s.metrics.RecordDecision("close", "accepted")
	s.log.WithField("assignment_id", id).Infof("assignment closed")
	return closed, nil
}

// CancelAssignment 取消派车（幂等）。
func (s *Service) CancelAssignment(ctx context.Context, id string) error {
	if s == nil || s.ledger == nil {
		return fmt.Errorf("assignment service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		s.metrics.RecordDecision("cancel", "not_found")
		return ErrNotFound
	}

	if err := s.ledger.Cancel(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.RecordDecision("cancel", "not_found")
		} else {
			s.metrics.RecordDecision("cancel", "error")
		}
		return err
	}
	s.metrics.RecordDecision("cancel", "accepted")
	s.log.WithField("assignment_id", id).Infof("assignment cancelled")
	return nil
}

// ProposeInterval 试探性裁决，不写入任何数据。
// excludeID 非空时把该记录排除在冲突检测外（修订场景）。
func (s *Service) ProposeInterval(ctx context.Context, vehicleID string, iv Interval, excludeID string) (Decision, error) {
	if s == nil || s.ledger == nil {
		return Decision{}, fmt.Errorf("assignment service not initialized")
	}
	d, err := s.ledger.Propose(ctx, strings.TrimSpace(vehicleID), iv, strings.TrimSpace(excludeID))
	if err != nil {
		s.metrics.RecordDecision("propose", "invalid")
		return Decision{}, err
	}
	if d.Accepted {
		s.metrics.RecordDecision("propose", "accepted")
	} else {
		s.metrics.RecordDecision("propose", "conflict")
	}
	return d, nil
}

// GetAssignment 按 ID 查询记录（含已取消的历史记录）。
func (s *Service) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("assignment service not initialized")
	}
	return s.store.Get(ctx, strings.TrimSpace(id))
}

// QueryActive 返回 asOf 时刻覆盖车辆的占用记录。asOf 为零值取当前时间。
func (s *Service) QueryActive(ctx context.Context, vehicleID string, asOf time.Time) (*Assignment, error) {
	if s == nil || s.resolver == nil {
		return nil, fmt.Errorf("assignment service not initialized")
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.resolver.ActiveAssignment(ctx, strings.TrimSpace(vehicleID), asOf)
}

// QueryUpcoming 返回 asOf 之后最早开始的占用记录。asOf 为零值取当前时间。
func (s *Service) QueryUpcoming(ctx context.Context, vehicleID string, asOf time.Time) (*Assignment, error) {
	if s == nil || s.resolver == nil {
		return nil, fmt.Errorf("assignment service not initialized")
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.resolver.NextUpcoming(ctx, strings.TrimSpace(vehicleID), asOf)
}

// QueryOccupied 返回 asOf 起仍有效的占用区间（升序）。asOf 为零值取当前时间。
func (s *Service) QueryOccupied(ctx context.Context, vehicleID string, asOf time.Time) ([]Assignment, error) {
	if s == nil || s.resolver == nil {
		return nil, fmt.Errorf("assignment service not initialized")
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.resolver.OccupiedPeriods(ctx, strings.TrimSpace(vehicleID), asOf)
}

// ListHistory 车辆的完整派车历史（含已取消），按开始时间降序分页。
func (s *Service) ListHistory(ctx context.Context, vehicleID string, offset, limit int) ([]Assignment, int64, error) {
	if s == nil || s.store == nil {
		return nil, 0, fmt.Errorf("assignment service not initialized")
	}
	return s.store.ListByVehicle(ctx, strings.TrimSpace(vehicleID), offset, limit)
}
