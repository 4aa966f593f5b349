package handler

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ternary-app/link-server/internal/database"
	"github.com/ternary-app/link-server/internal/model"
	"github.com/ternary-app/link-server/internal/repository"
)

// In-memory fakes with the same state-machine semantics as the Postgres
// repositories: the confirm guard, the one-shot token claim, the expiry sweep.
// Handler tests exercise the whole protocol through them.

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type fakeLinkRepo struct {
	mu    sync.Mutex
	links map[string]*model.DeviceLink // keyed by polling token
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: make(map[string]*model.DeviceLink)}
}

func (f *fakeLinkRepo) Create(ctx context.Context, params model.CreateDeviceLinkParams) (*model.DeviceLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link := &model.DeviceLink{
		ID:           params.PollingToken,
		Code:         params.Code,
		PollingToken: params.PollingToken,
		DeviceName:   params.DeviceName,
		Platform:     params.Platform,
		AppVersion:   params.AppVersion,
		Status:       model.LinkStatusPending,
		ExpiresAt:    params.ExpiresAt,
		CreatedAt:    time.Now(),
	}
	f.links[params.PollingToken] = link
	copied := *link
	return &copied, nil
}

func (f *fakeLinkRepo) FindByCode(ctx context.Context, code string) (*model.DeviceLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *model.DeviceLink
	for _, link := range f.links {
		if link.Code != code {
			continue
		}
		if newest == nil || link.CreatedAt.After(newest.CreatedAt) {
			newest = link
		}
	}
	if newest == nil {
		return nil, nil
	}
	copied := *newest
	return &copied, nil
}

func (f *fakeLinkRepo) FindByPollingToken(ctx context.Context, pollingToken string) (*model.DeviceLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[pollingToken]
	if !ok {
		return nil, nil
	}
	copied := *link
	return &copied, nil
}

func (f *fakeLinkRepo) Confirm(ctx context.Context, code, userID, tokenTemp string, approvedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.Code == code && link.Status == model.LinkStatusPending {
			link.Status = model.LinkStatusConfirmed
			link.UserID = &userID
			link.TokenTemp = &tokenTemp
			link.ApprovedAt = &approvedAt
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLinkRepo) ClaimToken(ctx context.Context, pollingToken string) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[pollingToken]
	if !ok || link.TokenTemp == nil {
		return nil, nil
	}
	token := *link.TokenTemp
	link.TokenTemp = nil
	return &token, nil
}

func (f *fakeLinkRepo) DeleteExpired(ctx context.Context, consumedRetention time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var deleted int64
	for key, link := range f.links {
		pendingExpired := link.Status == model.LinkStatusPending && now.After(link.ExpiresAt)
		consumedStale := link.Status == model.LinkStatusConfirmed && link.TokenTemp == nil &&
			link.ApprovedAt != nil && now.Sub(*link.ApprovedAt) > consumedRetention
		if pendingExpired || consumedStale {
			delete(f.links, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeLinkRepo) WithTx(tx *sqlx.Tx) repository.DeviceLinkRepository { return f }

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*model.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[string]*model.Device)}
}

func (f *fakeDeviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device := &model.Device{
		ID:         params.ID,
		UserID:     params.UserID,
		Name:       params.Name,
		Platform:   params.Platform,
		AppVersion: params.AppVersion,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	f.devices[params.ID] = device
	copied := *device
	return &copied, nil
}

func (f *fakeDeviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[id]
	if !ok {
		return nil, nil
	}
	copied := *device
	return &copied, nil
}

func (f *fakeDeviceRepo) ListWithTokenByUserID(ctx context.Context, userID string) ([]model.DeviceWithToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.DeviceWithToken
	for _, device := range f.devices {
		if device.UserID == userID {
			result = append(result, model.DeviceWithToken{Device: *device})
		}
	}
	return result, nil
}

func (f *fakeDeviceRepo) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if device, ok := f.devices[id]; ok {
		device.LastSeenAt = &seenAt
	}
	return nil
}

func (f *fakeDeviceRepo) WithTx(tx *sqlx.Tx) repository.DeviceRepository { return f }

type fakeTokenRepo struct {
	mu     sync.Mutex
	seq    int
	tokens map[string]*model.AppToken // keyed by token hash
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*model.AppToken)}
}

func (f *fakeTokenRepo) Create(ctx context.Context, params model.CreateAppTokenParams) (*model.AppToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	token := &model.AppToken{
		ID:        params.TokenHash[:8],
		UserID:    params.UserID,
		DeviceID:  params.DeviceID,
		TokenHash: params.TokenHash,
		Scope:     params.Scope,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: time.Now().Add(time.Duration(f.seq) * time.Millisecond),
	}
	f.tokens[params.TokenHash] = token
	copied := *token
	return &copied, nil
}

func (f *fakeTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AppToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.tokens[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *token
	return &copied, nil
}

func (f *fakeTokenRepo) FindLatestByUserID(ctx context.Context, userID string) (*model.AppToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.AppToken
	for _, token := range f.tokens {
		if token.UserID != userID {
			continue
		}
		if latest == nil || token.CreatedAt.After(latest.CreatedAt) {
			latest = token
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeTokenRepo) RevokeByDevice(ctx context.Context, userID, deviceID string, revokedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var revoked int64
	for _, token := range f.tokens {
		if token.UserID == userID && token.DeviceID == deviceID && token.RevokedAt == nil {
			token.RevokedAt = &revokedAt
			revoked++
		}
	}
	return revoked, nil
}

func (f *fakeTokenRepo) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, token := range f.tokens {
		if token.ID == id {
			token.LastUsedAt = &usedAt
		}
	}
	return nil
}

func (f *fakeTokenRepo) WithTx(tx *sqlx.Tx) repository.AppTokenRepository { return f }

type fakeUserRepo struct {
	usersByID          map[string]*model.User
	usersBySessionHash map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		usersByID:          make(map[string]*model.User),
		usersBySessionHash: make(map[string]*model.User),
	}
}

func (f *fakeUserRepo) addSession(sessionHash string, user *model.User) {
	f.usersByID[user.ID] = user
	f.usersBySessionHash[sessionHash] = user
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return f.usersByID[id], nil
}

func (f *fakeUserRepo) FindBySessionTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	return f.usersBySessionHash[tokenHash], nil
}

func (f *fakeUserRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return 0, nil
}
