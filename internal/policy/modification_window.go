package policy

import (
	"math"
	"time"

	apperrors "go-gin-trip-booking/pkg/app_errors"
)

const DefaultWindowDays = 3

// ModificationWindow 距離出發日不足 Lead 時，禁止非管理員修改
type ModificationWindow struct {
	Lead time.Duration
}

func NewModificationWindow(days int) ModificationWindow {
	return ModificationWindow{Lead: time.Duration(days) * 24 * time.Hour}
}

// IsMutationAllowed 管理員不受限制；其他人需距離日期至少 Lead（剛好 Lead 也可以）
func (w ModificationWindow) IsMutationAllowed(scheduleDate, now time.Time, actorIsAdmin bool) bool {
	if actorIsAdmin {
		return true
	}
	return scheduleDate.Sub(now) >= w.Lead
}

// Check 同 IsMutationAllowed，不允許時回傳附上剩餘天數的 ErrOutsideModificationWindow
func (w ModificationWindow) Check(scheduleDate, now time.Time, actorIsAdmin bool) error {
	if w.IsMutationAllowed(scheduleDate, now, actorIsAdmin) {
		return nil
	}
	left := DaysLeft(scheduleDate, now)
	return apperrors.WithFields(apperrors.ErrOutsideModificationWindow,
		map[string]interface{}{
			"days_left":     left,
			"required_days": int(w.Lead / (24 * time.Hour)),
		},
		"changes are not allowed within %d days of the trip, %d day(s) left", int(w.Lead/(24*time.Hour)), left)
}

// DaysLeft 距離出發日的天數，無條件進位，最小為 0
func DaysLeft(scheduleDate, now time.Time) int {
	d := scheduleDate.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// IsMutationAllowed 使用預設的三天限制
func IsMutationAllowed(scheduleDate, now time.Time, actorIsAdmin bool) bool {
	return NewModificationWindow(DefaultWindowDays).IsMutationAllowed(scheduleDate, now, actorIsAdmin)
}
