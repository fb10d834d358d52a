package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/booking/scheduler/pkg/config"
	"github.com/google/wire"
)

var Provider = wire.NewSet(NewUsecase)

type Usecase struct {
	repo        Repo
	earlyWindow time.Duration
}

func NewUsecase(repo Repo, cfg *config.Config) *Usecase {
	return &Usecase{
		repo:        repo,
		earlyWindow: cfg.Access.EarlyWindow,
	}
}

// GetByID 查询预订
func (u *Usecase) GetByID(ctx context.Context, id uint64) (*Booking, error) {
	return u.repo.GetByID(ctx, id)
}

// ValidateDoorAccess 校验用户当前能否打开指定门
// 有效窗口为 [start_time - earlyWindow, end_time]，窗口外按原因区分拒绝
func (u *Usecase) ValidateDoorAccess(ctx context.Context, userID, doorID uint64, now time.Time) (*AccessDecision, error) {
	bookings, err := u.repo.FindConfirmedByUserAndRoom(ctx, userID, doorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings for door access: %w", err)
	}
	return decide(bookings, now, u.earlyWindow), nil
}

// decide 纯判定，不产生副作用，审计由调用方负责
func decide(bookings []*Booking, now time.Time, earlyWindow time.Duration) *AccessDecision {
	if len(bookings) == 0 {
		return &AccessDecision{Valid: false, Reason: ReasonNoBooking}
	}

	var upcoming *Booking
	for _, b := range bookings {
		earliest := b.StartAt().Add(-earlyWindow)
		if !now.Before(earliest) && !now.After(b.EndAt()) {
			return &AccessDecision{Valid: true, Booking: b}
		}
		if now.Before(earliest) && (upcoming == nil || b.StartTime < upcoming.StartTime) {
			upcoming = b
		}
	}

	// 有即将开始的预订提示来早了，否则都已过期
	if upcoming != nil {
		return &AccessDecision{Valid: false, Reason: ReasonTooEarly}
	}
	return &AccessDecision{Valid: false, Reason: ReasonExpired}
}
