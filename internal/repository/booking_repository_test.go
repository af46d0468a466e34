//go:build integration

package repository

import (
	"context"
	"go-gin-trip-booking/internal/model"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingRepository_FindByID(t *testing.T) {
	repo := NewBookingRepository(testDB)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		seed := setupSeed(t, 5, 10)
		booking := createTestBooking(t, seed, "Ana", "Budi")

		found, err := repo.FindByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, found.ID)
		assert.Equal(t, 2, found.AttendeeCount)
		assert.Equal(t, int64(2000), found.BalanceDue)
		require.NotNil(t, found.ScheduleDate)
		assert.True(t, found.ScheduleDate.Equal(seed.Schedule.Date))
	})

	t.Run("NotFound", func(t *testing.T) {
		setupSeed(t, 5, 10)

		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
	})
}

func TestBookingRepository_Create(t *testing.T) {
	repo := NewBookingRepository(testDB)
	ctx := context.Background()

	t.Run("UnknownUser", func(t *testing.T) {
		seed := setupSeed(t, 5, 10)

		err := NewTxManager(testDB).WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			_, err := repo.Create(ctx, tx, &model.Booking{
				UserID:     uuid.New(),
				ServiceID:  seed.Service.ID,
				ScheduleID: seed.Schedule.ID,
				Status:     model.BookingStatusPendingPayment,
				TotalPrice: 1000,
			})
			return err
		})
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}

func TestBookingRepository_List(t *testing.T) {
	repo := NewBookingRepository(testDB)
	ctx := context.Background()
	seed := setupSeed(t, 10, 10)
	first := createTestBooking(t, seed, "Ana")
	second := createTestBooking(t, seed, "Budi")

	bookings, total, err := repo.List(ctx, model.BookingFilter{UserID: &seed.User.ID, Limit: 1, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, bookings, 1)
	assert.Equal(t, second.ID, bookings[0].ID)

	bookings, _, err = repo.List(ctx, model.BookingFilter{UserID: &seed.User.ID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, first.ID, bookings[0].ID)

	_, total, err = repo.List(ctx, model.BookingFilter{UserID: &seed.Admin.ID, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestBookingRepository_StatusAndBalance(t *testing.T) {
	repo := NewBookingRepository(testDB)
	ctx := context.Background()
	seed := setupSeed(t, 5, 10)
	booking := createTestBooking(t, seed, "Ana")

	inTx(t, func(tx pgx.Tx) {
		locked, err := repo.FindByIDWithLock(ctx, tx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPendingPayment, locked.Status)

		require.NoError(t, repo.UpdateStatus(ctx, tx, booking.ID, model.BookingStatusConfirmed))
		require.NoError(t, repo.AddBalanceDue(ctx, tx, booking.ID, 500))
	})

	found, err := repo.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, found.Status)
	assert.Equal(t, int64(1500), found.BalanceDue)
}

func TestBookingRepository_ListAttendedByUser(t *testing.T) {
	repo := NewBookingRepository(testDB)
	ctx := context.Background()
	seed := setupSeed(t, 5, 10)
	booking := createTestBooking(t, seed, "Ana")

	// 管理員以參加者身分出現在別人的預約
	_, err := testDB.Exec(ctx, `UPDATE attendees SET user_id = $1 WHERE booking_id = $2`, seed.Admin.ID, booking.ID)
	require.NoError(t, err)

	attended, err := repo.ListAttendedByUser(ctx, seed.Admin.ID)
	require.NoError(t, err)
	require.Len(t, attended, 1)
	assert.Equal(t, booking.ID, attended[0].ID)

	attended, err = repo.ListAttendedByUser(ctx, seed.User.ID)
	require.NoError(t, err)
	assert.Empty(t, attended)
}
