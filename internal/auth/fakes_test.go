package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ecomauth/server/internal/model"
	"github.com/ecomauth/server/internal/repo"
)

var (
	errUniqueViolation = &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	errSendFailed      = errors.New("send failed")
)

// In-memory repository fakes. They reproduce the contracts the real pq
// implementations provide, including ErrNotFound on zero-row operations and
// the atomic delete the rotation invariant rests on.

type codeKey struct {
	email   string
	purpose model.CodePurpose
}

type fakeCodeRepo struct {
	mu    sync.Mutex
	codes map[codeKey]model.VerificationCode
	next  int64
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: make(map[codeKey]model.VerificationCode)}
}

func (f *fakeCodeRepo) Upsert(_ context.Context, email string, purpose model.CodePurpose, code string, expiresAt time.Time) (model.VerificationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := codeKey{email, purpose}
	existing, ok := f.codes[key]
	if ok {
		existing.Code = code
		existing.ExpiresAt = expiresAt
		f.codes[key] = existing
		return existing, nil
	}
	f.next++
	vc := model.VerificationCode{
		ID:        f.next,
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	f.codes[key] = vc
	return vc, nil
}

func (f *fakeCodeRepo) Get(_ context.Context, email string, purpose model.CodePurpose) (model.VerificationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vc, ok := f.codes[codeKey{email, purpose}]
	if !ok {
		return model.VerificationCode{}, repo.ErrNotFound
	}
	return vc, nil
}

func (f *fakeCodeRepo) Delete(_ context.Context, email string, purpose model.CodePurpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := codeKey{email, purpose}
	if _, ok := f.codes[key]; !ok {
		return repo.ErrNotFound
	}
	delete(f.codes, key)
	return nil
}

func (f *fakeCodeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.codes)
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[int64]model.Device
	next    int64
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[int64]model.Device)}
}

func (f *fakeDeviceRepo) Create(_ context.Context, userID int64, userAgent, ip string) (model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	d := model.Device{
		ID:         f.next,
		UserID:     userID,
		UserAgent:  userAgent,
		IP:         ip,
		LastActive: time.Now(),
		IsActive:   true,
		CreatedAt:  time.Now(),
	}
	f.devices[d.ID] = d
	return d, nil
}

func (f *fakeDeviceRepo) Touch(_ context.Context, id int64, userAgent, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return repo.ErrNotFound
	}
	d.UserAgent = userAgent
	d.IP = ip
	d.LastActive = time.Now()
	f.devices[id] = d
	return nil
}

func (f *fakeDeviceRepo) Deactivate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok {
		return repo.ErrNotFound
	}
	d.IsActive = false
	f.devices[id] = d
	return nil
}

func (f *fakeDeviceRepo) get(id int64) (model.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	return d, ok
}

type fakeRefreshRepo struct {
	mu      sync.Mutex
	records map[string]model.RefreshTokenRecord
	users   *fakeUserRepo
}

func newFakeRefreshRepo(users *fakeUserRepo) *fakeRefreshRepo {
	return &fakeRefreshRepo{records: make(map[string]model.RefreshTokenRecord), users: users}
}

func (f *fakeRefreshRepo) Create(_ context.Context, token string, userID, deviceID int64, expiresAt time.Time) (model.RefreshTokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := model.RefreshTokenRecord{
		Token:     token,
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	f.records[token] = rec
	return rec, nil
}

func (f *fakeRefreshRepo) GetWithUserRole(ctx context.Context, token string) (model.RefreshTokenRecord, model.User, model.Role, error) {
	f.mu.Lock()
	rec, ok := f.records[token]
	f.mu.Unlock()
	if !ok {
		return model.RefreshTokenRecord{}, model.User{}, model.Role{}, repo.ErrNotFound
	}
	user, err := f.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return model.RefreshTokenRecord{}, model.User{}, model.Role{}, err
	}
	role := f.users.roleFor(user.RoleID)
	return rec, user, role, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[token]; !ok {
		return repo.ErrNotFound
	}
	delete(f.records, token)
	return nil
}

func (f *fakeRefreshRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]model.User
	roles map[int64]model.Role
	next  int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[int64]model.User),
		roles: map[int64]model.Role{
			1: {ID: 1, Name: model.RoleAdmin},
			2: {ID: 2, Name: model.RoleClient},
			3: {ID: 3, Name: model.RoleSeller},
		},
	}
}

func (f *fakeUserRepo) roleFor(roleID int64) model.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[roleID]
}

func (f *fakeUserRepo) Create(_ context.Context, user model.User) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return model.User{}, errUniqueViolation
		}
	}
	f.next++
	user.ID = f.next
	user.Status = model.UserStatusActive
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (f *fakeUserRepo) GetByEmailWithRole(ctx context.Context, email string) (model.User, model.Role, error) {
	u, err := f.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, model.Role{}, err
	}
	return u, f.roleFor(u.RoleID), nil
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.users[id] = u
	return nil
}

func (f *fakeUserRepo) UpdateTOTPSecret(_ context.Context, id int64, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.TOTPSecret = secret
	f.users[id] = u
	return nil
}

func (f *fakeUserRepo) ClearTOTPSecret(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.TOTPSecret = ""
	f.users[id] = u
	return nil
}

type fakeRoleRepo struct{}

func (fakeRoleRepo) GetByName(_ context.Context, name string) (model.Role, error) {
	switch name {
	case model.RoleAdmin:
		return model.Role{ID: 1, Name: name}, nil
	case model.RoleClient:
		return model.Role{ID: 2, Name: name}, nil
	case model.RoleSeller:
		return model.Role{ID: 3, Name: name}, nil
	}
	return model.Role{}, repo.ErrNotFound
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string // codes, in send order
	fail  bool
	addrs []string
}

func (f *fakeSender) SendOTP(_ context.Context, to, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errSendFailed
	}
	f.sent = append(f.sent, code)
	f.addrs = append(f.addrs, to)
	return nil
}

func (f *fakeSender) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}
