package service

import (
	"context"
	"errors"
	"go-gin-trip-booking/internal/cache"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/queue"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memState 是資料表的快照，交易失敗時整份還原
type memState struct {
	users     map[uuid.UUID]model.User
	services  map[uuid.UUID]model.Service
	schedules map[uuid.UUID]model.Schedule
	bookings  map[uuid.UUID]model.Booking
	attendees map[uuid.UUID]model.Attendee
	files     map[uuid.UUID]model.File
}

func newMemState() *memState {
	return &memState{
		users:     map[uuid.UUID]model.User{},
		services:  map[uuid.UUID]model.Service{},
		schedules: map[uuid.UUID]model.Schedule{},
		bookings:  map[uuid.UUID]model.Booking{},
		attendees: map[uuid.UUID]model.Attendee{},
		files:     map[uuid.UUID]model.File{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		users:     maps.Clone(s.users),
		services:  maps.Clone(s.services),
		schedules: maps.Clone(s.schedules),
		bookings:  maps.Clone(s.bookings),
		attendees: maps.Clone(s.attendees),
		files:     maps.Clone(s.files),
	}
}

// memStore 以 txMu 串行化交易，代替資料庫的列鎖
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *memState
	seq  int64

	failCreateBatch error
}

type memTx struct {
	pgx.Tx
}

func newMemStore() *memStore {
	return &memStore{st: newMemState()}
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(ctx, memTx{}); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// tick 回傳遞增的時間戳，caller 需持有 mu
func (m *memStore) tick() time.Time {
	m.seq++
	return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Millisecond)
}

func (m *memStore) schedule(id uuid.UUID) model.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.schedules[id]
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.bookings)
}

func (m *memStore) liveAttendees(scheduleID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.st.attendees {
		b := m.st.bookings[a.BookingID]
		if b.ScheduleID == scheduleID && b.Status.HoldsCapacity() {
			n++
		}
	}
	return n
}

// ---- services ----

type memServices struct{ *memStore }

func (r memServices) FindByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.st.services[id]
	if !ok || s.IsDeleted() {
		return nil, apperrors.ErrServiceNotFound
	}
	return &s, nil
}

func (r memServices) List(ctx context.Context, limit, offset int) ([]*model.Service, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Service, 0)
	for _, s := range r.st.services {
		if !s.IsDeleted() {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset >= total {
		return []*model.Service{}, total, nil
	}
	end := min(offset+limit, total)
	return out[offset:end], total, nil
}

func (r memServices) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.st.services[id]
	if !ok || s.IsDeleted() {
		return apperrors.ErrServiceNotFound
	}
	now := r.tick()
	s.DeletedAt = &now
	r.st.services[id] = s
	return nil
}

func (r memServices) Create(ctx context.Context, tx pgx.Tx, service *model.Service) (*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	service.ID = uuid.New()
	service.CreatedAt = r.tick()
	service.UpdatedAt = service.CreatedAt
	r.st.services[service.ID] = *service
	return service, nil
}

func (r memServices) FindByIDInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.st.services[id]
	if !ok {
		return nil, apperrors.ErrServiceNotFound
	}
	return &s, nil
}

func (r memServices) Update(ctx context.Context, tx pgx.Tx, id uuid.UUID, p model.UpdateServiceParams) (*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.st.services[id]
	if !ok || s.IsDeleted() {
		return nil, apperrors.ErrServiceNotFound
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.BasePrice != nil {
		s.BasePrice = *p.BasePrice
	}
	if p.Location != nil {
		s.Location = p.Location
	}
	if p.IsBookable != nil {
		s.IsBookable = *p.IsBookable
	}
	if p.TripDetails != nil {
		s.TripDetails = p.TripDetails
	}
	s.UpdatedAt = r.tick()
	r.st.services[id] = s
	return &s, nil
}

// ---- schedules ----

type memSchedules struct{ *memStore }

func (r memSchedules) Create(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = r.tick()
	s.UpdatedAt = s.CreatedAt
	r.st.schedules[s.ID] = *s
	return s, nil
}

func (r memSchedules) FindByID(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.st.schedules[id]
	if !ok || s.IsDeleted() {
		return nil, apperrors.ErrScheduleNotFound
	}
	return &s, nil
}

func (r memSchedules) ListUpcomingByService(ctx context.Context, serviceID uuid.UUID, from time.Time) ([]*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Schedule, 0)
	for _, s := range r.st.schedules {
		if s.ServiceID == serviceID && s.IsActive && !s.IsDeleted() && !s.Date.Before(from) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r memSchedules) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.st.schedules[id]
	if !ok {
		return nil, apperrors.ErrScheduleNotFound
	}
	return &s, nil
}

func (r memSchedules) Update(ctx context.Context, tx pgx.Tx, s *model.Schedule) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.st.schedules[s.ID]; !ok {
		return nil, apperrors.ErrScheduleNotFound
	}
	if s.BookedCount > s.Capacity {
		return nil, apperrors.ErrCapacityViolation
	}
	s.UpdatedAt = r.tick()
	r.st.schedules[s.ID] = *s
	return s, nil
}

func (r memSchedules) AdjustBookedCount(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.st.schedules[id]
	if !ok {
		return nil, apperrors.ErrScheduleNotFound
	}
	next := s.BookedCount + delta
	if next < 0 || next > s.Capacity {
		return nil, apperrors.WithDetail(apperrors.ErrCapacityExceeded, "booked count out of range")
	}
	s.BookedCount = next
	s.UpdatedAt = r.tick()
	r.st.schedules[id] = s
	return &s, nil
}

func (r memSchedules) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.st.schedules[id]
	if !ok || s.IsDeleted() {
		return apperrors.ErrScheduleNotFound
	}
	for _, b := range r.st.bookings {
		if b.ScheduleID == id {
			now := r.tick()
			s.IsActive = false
			s.DeletedAt = &now
			s.UpdatedAt = now
			r.st.schedules[id] = s
			return nil
		}
	}
	delete(r.st.schedules, id)
	return nil
}

// ---- bookings ----

type memBookings struct{ *memStore }

// read 補上 JOIN 欄位，caller 需持有 mu
func (r memBookings) read(b model.Booking) *model.Booking {
	for _, a := range r.st.attendees {
		if a.BookingID == b.ID {
			b.AttendeeCount++
		}
	}
	if b.PaymentProofID != nil {
		if f, ok := r.st.files[*b.PaymentProofID]; ok {
			path := f.Path
			b.PaymentProofPath = &path
		}
	}
	date := r.st.schedules[b.ScheduleID].Date
	b.ScheduleDate = &date
	return &b
}

func (r memBookings) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.st.bookings[id]
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	return r.read(b), nil
}

func (r memBookings) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Booking, 0)
	for _, b := range r.st.bookings {
		if filter.UserID == nil || b.UserID == *filter.UserID {
			out = append(out, r.read(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if filter.Offset >= total {
		return []*model.Booking{}, total, nil
	}
	return out[filter.Offset:min(filter.Offset+filter.Limit, total)], total, nil
}

func (r memBookings) ListAttendedByUser(ctx context.Context, userID uuid.UUID) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Booking, 0)
	for _, b := range r.st.bookings {
		if b.UserID == userID {
			continue
		}
		for _, a := range r.st.attendees {
			if a.BookingID == b.ID && a.UserID != nil && *a.UserID == userID {
				out = append(out, r.read(b))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduleDate.Before(*out[j].ScheduleDate) })
	return out, nil
}

func (r memBookings) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = uuid.New()
	b.CreatedAt = r.tick()
	b.UpdatedAt = b.CreatedAt
	stored := *b
	stored.Attendees = nil
	r.st.bookings[b.ID] = stored
	return b, nil
}

func (r memBookings) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.st.bookings[id]
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	return &b, nil
}

func (r memBookings) mutate(id uuid.UUID, fn func(b *model.Booking)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.st.bookings[id]
	if !ok {
		return apperrors.ErrBookingNotFound
	}
	fn(&b)
	b.UpdatedAt = r.tick()
	r.st.bookings[id] = b
	return nil
}

func (r memBookings) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.BookingStatus) error {
	return r.mutate(id, func(b *model.Booking) { b.Status = status })
}

func (r memBookings) UpdateSchedule(ctx context.Context, tx pgx.Tx, id uuid.UUID, scheduleID uuid.UUID) error {
	return r.mutate(id, func(b *model.Booking) { b.ScheduleID = scheduleID })
}

func (r memBookings) AddBalanceDue(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	return r.mutate(id, func(b *model.Booking) { b.BalanceDue += amount })
}

func (r memBookings) SetPaymentProof(ctx context.Context, tx pgx.Tx, id uuid.UUID, fileID uuid.UUID) error {
	return r.mutate(id, func(b *model.Booking) { b.PaymentProofID = &fileID })
}

// ---- attendees ----

type memAttendees struct{ *memStore }

func (r memAttendees) byBooking(bookingID uuid.UUID) []*model.Attendee {
	out := make([]*model.Attendee, 0)
	for _, a := range r.st.attendees {
		if a.BookingID == bookingID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r memAttendees) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*model.Attendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byBooking(bookingID), nil
}

func (r memAttendees) ListManifest(ctx context.Context, scheduleID uuid.UUID) ([]*model.ManifestEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.ManifestEntry, 0)
	for _, a := range r.st.attendees {
		b := r.st.bookings[a.BookingID]
		if b.ScheduleID != scheduleID || b.Status == model.BookingStatusCancelled {
			continue
		}
		out = append(out, &model.ManifestEntry{
			BookingID:     b.ID,
			BookingStatus: b.Status,
			Name:          a.Name,
			Email:         a.Email,
			Phone:         a.Phone,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memAttendees) CreateBatch(ctx context.Context, tx pgx.Tx, attendees []*model.Attendee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateBatch != nil {
		return r.failCreateBatch
	}
	for _, a := range attendees {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		r.st.attendees[a.ID] = *a
	}
	return nil
}

func (r memAttendees) FindByBookingIDInTx(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) ([]*model.Attendee, error) {
	return r.FindByBookingID(ctx, bookingID)
}

func (r memAttendees) Update(ctx context.Context, tx pgx.Tx, a *model.Attendee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.st.attendees[a.ID]
	if !ok || existing.BookingID != a.BookingID {
		return apperrors.ErrAttendeeNotFound
	}
	r.st.attendees[a.ID] = *a
	return nil
}

func (r memAttendees) DeleteByIDs(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID, ids []uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if a, ok := r.st.attendees[id]; ok && a.BookingID == bookingID {
			delete(r.st.attendees, id)
			n++
		}
	}
	return n, nil
}

// ---- users ----

type memUsers struct{ *memStore }

func (r memUsers) Create(ctx context.Context, u *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = uuid.New()
	u.CreatedAt = r.tick()
	u.UpdatedAt = u.CreatedAt
	r.st.users[u.ID] = *u
	return u, nil
}

func (r memUsers) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.st.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) find(match func(u model.User) bool) []*model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.User, 0)
	for _, u := range r.st.users {
		if match(u) {
			u := u
			out = append(out, &u)
		}
	}
	return out
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	found := r.find(func(u model.User) bool { return u.Email != nil && *u.Email == email })
	if len(found) == 0 {
		return nil, apperrors.ErrUserNotFound
	}
	return found[0], nil
}

func (r memUsers) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	found := r.find(func(u model.User) bool { return u.Phone != nil && *u.Phone == phone })
	if len(found) == 0 {
		return nil, apperrors.ErrUserNotFound
	}
	return found[0], nil
}

func (r memUsers) FindByEmails(ctx context.Context, tx pgx.Tx, emails []string) ([]*model.User, error) {
	set := toSet(emails)
	return r.find(func(u model.User) bool { return u.Email != nil && set[*u.Email] }), nil
}

func (r memUsers) FindByPhones(ctx context.Context, tx pgx.Tx, phones []string) ([]*model.User, error) {
	set := toSet(phones)
	return r.find(func(u model.User) bool { return u.Phone != nil && set[*u.Phone] }), nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// ---- files ----

type memFiles struct{ *memStore }

func (r memFiles) FindByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.st.files[id]
	if !ok {
		return nil, apperrors.ErrFileNotFound
	}
	return &f, nil
}

func (r memFiles) Create(ctx context.Context, tx pgx.Tx, f *model.File) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = uuid.New()
	f.CreatedAt = r.tick()
	r.st.files[f.ID] = *f
	return f, nil
}

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (b *memBlobs) Put(ctx context.Context, prefix, filename string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.blobs == nil {
		b.blobs = map[string][]byte{}
	}
	path := prefix + "/" + uuid.NewString() + "-" + filename
	b.blobs[path] = data
	return path, nil
}

// ---- cache / queue ----

type memAvailability struct {
	mu      sync.Mutex
	entries map[uuid.UUID]model.ScheduleAvailability
	err     error
}

func newMemAvailability() *memAvailability {
	return &memAvailability{entries: map[uuid.UUID]model.ScheduleAvailability{}}
}

func (c *memAvailability) Set(ctx context.Context, s *model.Schedule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[s.ID] = s.Availability()
	return nil
}

func (c *memAvailability) Get(ctx context.Context, id uuid.UUID) (*model.ScheduleAvailability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &a, nil
}

func (c *memAvailability) Invalidate(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

type recordingQueue struct {
	mu     sync.Mutex
	events []*model.BookingEvent
	err    error
}

func (q *recordingQueue) Publish(ctx context.Context, event *model.BookingEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) Subscribe(ctx context.Context) (<-chan queue.Delivery, error) {
	return nil, errors.New("not supported")
}

func (q *recordingQueue) types() []model.BookingEventType {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.BookingEventType, 0, len(q.events))
	for _, e := range q.events {
		out = append(out, e.Type)
	}
	return out
}
