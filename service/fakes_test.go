package service

import (
	"context"
	"sync"
	"time"

	"github.com/raushankrgupta/birthday-club/models"
	"github.com/raushankrgupta/birthday-club/notification"
	"github.com/raushankrgupta/birthday-club/ratelimit"
	"github.com/raushankrgupta/birthday-club/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memoryUsers struct {
	mu    sync.Mutex
	users []*models.User
	err   error

	// deleteCap, when positive, limits how many rows one delete removes.
	deleteCap int
}

func (m *memoryUsers) byEmail(email string) *models.User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *memoryUsers) byID(id primitive.ObjectID) *models.User {
	for _, u := range m.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *memoryUsers) add(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := u
	m.users = append(m.users, &cp)
	return &cp
}

func (m *memoryUsers) get(email string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byEmail(email)
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func (m *memoryUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.byEmail(u.Email) != nil {
		return repository.ErrDuplicate
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u := m.byEmail(email)
	if u == nil {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) update(id primitive.ObjectID, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u := m.byID(id)
	if u == nil {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memoryUsers) SetOTP(_ context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error {
	return m.update(id, func(u *models.User) {
		u.OTP = otp
		u.OTPExpiresAt = &expiresAt
	})
}

func (m *memoryUsers) ClearOTP(_ context.Context, id primitive.ObjectID) error {
	return m.update(id, func(u *models.User) { u.ClearOTP() })
}

func (m *memoryUsers) MarkAuthenticated(_ context.Context, id primitive.ObjectID) error {
	return m.update(id, func(u *models.User) {
		u.Authenticated = true
		u.ClearOTP()
	})
}

func expiredAt(u *models.User, now time.Time) bool {
	return !u.Authenticated && u.OTP != "" && u.OTPExpiresAt != nil && u.OTPExpiresAt.Before(now)
}

func (m *memoryUsers) ClearExpiredOTPs(_ context.Context, now time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	var n int64
	for _, u := range m.users {
		if expiredAt(u, now) {
			u.ClearOTP()
			n++
		}
	}
	return n, n, nil
}

func (m *memoryUsers) OTPStats(_ context.Context, now time.Time) (models.OTPStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st models.OTPStats
	for _, u := range m.users {
		switch {
		case u.Authenticated:
			continue
		case u.OTP == "":
			st.WithoutOTP++
		case expiredAt(u, now):
			st.Expired++
		default:
			st.Active++
		}
		st.TotalUnauthenticated++
	}
	return st, m.err
}

func (m *memoryUsers) CountByAuthentication(context.Context) (models.UserCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c models.UserCounts
	for _, u := range m.users {
		if u.Authenticated {
			c.Authenticated++
		} else {
			c.Unauthenticated++
		}
	}
	c.Total = c.Authenticated + c.Unauthenticated
	return c, m.err
}

func (m *memoryUsers) filter(keep func(u *models.User) bool) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []models.User{}
	for _, u := range m.users {
		if keep(u) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryUsers) FindUnauthenticated(context.Context) ([]models.User, error) {
	return m.filter(func(u *models.User) bool { return !u.Authenticated })
}

func (m *memoryUsers) FindAuthenticated(context.Context) ([]models.User, error) {
	return m.filter(func(u *models.User) bool { return u.Authenticated })
}

func (m *memoryUsers) FindBirthdays(_ context.Context, month time.Month, day int) ([]models.User, error) {
	return m.filter(func(u *models.User) bool {
		return u.Authenticated && u.DateOfBirth.Month() == month && u.DateOfBirth.Day() == day
	})
}

func (m *memoryUsers) DeleteUnauthenticatedByIDs(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	wanted := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var kept []*models.User
	var n int64
	for _, u := range m.users {
		if wanted[u.ID] && !u.Authenticated && (m.deleteCap <= 0 || n < int64(m.deleteCap)) {
			n++
			continue
		}
		kept = append(kept, u)
	}
	m.users = kept
	return n, nil
}

type memoryArchive struct {
	mu   sync.Mutex
	rows []models.ArchivedUser

	// insertCap, when non-negative, makes InsertMany stop after that many rows.
	insertCap int
	insertErr error
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{insertCap: -1}
}

func (a *memoryArchive) InsertMany(_ context.Context, users []models.ArchivedUser) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(users)
	if a.insertCap >= 0 && a.insertCap < n {
		n = a.insertCap
	}
	a.rows = append(a.rows, users[:n]...)
	if n < len(users) {
		return n, a.insertErr
	}
	return n, nil
}

func (a *memoryArchive) CountByRun(_ context.Context, runID string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n int64
	for _, r := range a.rows {
		if r.RunID == runID {
			n++
		}
	}
	return n, nil
}

type fakeExporter struct {
	runID string
	count int
	err   error
}

func (e *fakeExporter) ExportArchive(_ context.Context, runID string, users []models.ArchivedUser) (string, error) {
	e.runID = runID
	e.count = len(users)
	if e.err != nil {
		return "", e.err
	}
	return "archive/" + runID + ".json", nil
}

type fakeLimiter struct {
	decision ratelimit.Decision
	err      error
	calls    int
}

func (l *fakeLimiter) CheckAndIncrement(context.Context, string) (ratelimit.Decision, error) {
	l.calls++
	return l.decision, l.err
}

type sentCode struct {
	to   notification.Recipient
	code string
}

type fakeNotifier struct {
	mu        sync.Mutex
	codes     []sentCode
	codeErr   error
	notices   map[string][]string // celebrant email -> recipient emails
	failEmail string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notices: map[string][]string{}}
}

func (n *fakeNotifier) SendVerificationCode(_ context.Context, to notification.Recipient, code string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codeErr != nil {
		return n.codeErr
	}
	n.codes = append(n.codes, sentCode{to: to, code: code})
	return nil
}

func (n *fakeNotifier) SendBirthdayNotices(_ context.Context, celebrant notification.Recipient, recipients []notification.Recipient) []notification.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification.Delivery, len(recipients))
	for i, r := range recipients {
		out[i] = notification.Delivery{Email: r.Email, Attempts: 1}
		if r.Email == n.failEmail {
			out[i].Err = errTransport
			continue
		}
		n.notices[celebrant.Email] = append(n.notices[celebrant.Email], r.Email)
	}
	return out
}

func (n *fakeNotifier) received(email string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, rs := range n.notices {
		for _, r := range rs {
			if r == email {
				c++
			}
		}
	}
	return c
}

type testEnv struct {
	svc      *Service
	users    *memoryUsers
	archive  *memoryArchive
	limiter  *fakeLimiter
	notifier *fakeNotifier
	clock    *testClock
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newTestEnv(now time.Time, opts ...Option) *testEnv {
	env := &testEnv{
		users:    &memoryUsers{},
		archive:  newMemoryArchive(),
		limiter:  &fakeLimiter{decision: ratelimit.Decision{Allowed: true, Count: 1}},
		notifier: newFakeNotifier(),
		clock:    &testClock{t: now},
	}
	seq := 0
	opts = append([]Option{
		WithClock(env.clock.Now),
		WithOTPGenerator(func() (string, error) {
			seq++
			return []string{"111111", "222222", "333333", "444444", "555555"}[(seq-1)%5], nil
		}),
	}, opts...)
	env.svc = New(env.users, env.archive, env.limiter, env.notifier, zap.NewNop(), opts...)
	return env
}
