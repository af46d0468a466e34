package policy

import (
	"testing"
	"time"

	apperrors "go-gin-trip-booking/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMutationAllowed(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		until   time.Duration
		isAdmin bool
		want    bool
	}{
		{"ExactlyThreeDays", 72 * time.Hour, false, true},
		{"TwoDaysTwentyThreeHours", 71 * time.Hour, false, false},
		{"OneNanosecondShort", 72*time.Hour - time.Nanosecond, false, false},
		{"TenDays", 240 * time.Hour, false, true},
		{"PastDate", -24 * time.Hour, false, false},
		{"AdminInsideWindow", time.Hour, true, true},
		{"AdminPastDate", -48 * time.Hour, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsMutationAllowed(now.Add(tc.until), now, tc.isAdmin))
		})
	}
}

func TestCheck_ReportsDaysLeft(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	w := NewModificationWindow(3)

	err := w.Check(now.Add(47*time.Hour), now, false)
	require.ErrorIs(t, err, apperrors.ErrOutsideModificationWindow)
	assert.Equal(t, 2, apperrors.Fields(err)["days_left"])
	assert.Equal(t, 3, apperrors.Fields(err)["required_days"])

	assert.NoError(t, w.Check(now.Add(72*time.Hour), now, false))
	assert.NoError(t, w.Check(now.Add(time.Minute), now, true))
}

func TestCustomWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	w := NewModificationWindow(7)

	assert.False(t, w.IsMutationAllowed(now.Add(6*24*time.Hour), now, false))
	assert.True(t, w.IsMutationAllowed(now.Add(7*24*time.Hour), now, false))
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysLeft(now.Add(-time.Hour), now))
	assert.Equal(t, 0, DaysLeft(now, now))
	assert.Equal(t, 1, DaysLeft(now.Add(time.Hour), now))
	assert.Equal(t, 3, DaysLeft(now.Add(71*time.Hour), now))
	assert.Equal(t, 3, DaysLeft(now.Add(72*time.Hour), now))
}
