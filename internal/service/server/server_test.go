package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"anon_messenger/internal/config"
	"anon_messenger/internal/model"
	"anon_messenger/internal/service/channel"
	"anon_messenger/internal/service/identity"
	"anon_messenger/internal/service/ratelimit"
	"anon_messenger/internal/service/relay"
	"anon_messenger/internal/service/store/storetest"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memChannelRepo keeps channel metadata in a map so the handlers can be
// exercised without mongo.
type memChannelRepo struct {
	channels map[string]*model.Channel
}

func newMemChannelRepo() *memChannelRepo {
	return &memChannelRepo{channels: make(map[string]*model.Channel)}
}

func (r *memChannelRepo) Create(_ context.Context, ch *model.Channel) error {
	clone := *ch
	r.channels[ch.ID] = &clone
	return nil
}

func (r *memChannelRepo) GetByID(_ context.Context, id string) (*model.Channel, error) {
	ch, ok := r.channels[id]
	if !ok {
		return nil, nil
	}
	clone := *ch
	return &clone, nil
}

func (r *memChannelRepo) List(_ context.Context) ([]*model.Channel, error) {
	out := make([]*model.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		clone := *ch
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memChannelRepo) Delete(_ context.Context, id string) error {
	delete(r.channels, id)
	return nil
}

type serverFixture struct {
	srv      *HttpServer
	handler  http.Handler
	store    *storetest.Store
	identity *identity.Service
	hub      *relay.Hub
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Identity: config.IdentityConfig{
			IdleTTL:   120 * time.Minute,
			HardCap:   24 * time.Hour,
			MetricTTL: 2 * time.Hour,
		},
		Limits: config.LimitsConfig{
			RegistrationWindow:    time.Hour,
			RegistrationThreshold: 5,
			MessageWindow:         time.Minute,
			MessageThreshold:      30,
			MaxContentBytes:       100_000,
		},
		Relay: config.RelayConfig{
			HeartbeatInterval: 100 * time.Millisecond,
			SendBuffer:        8,
		},
	}

	st := storetest.New()
	id := identity.NewService(st, cfg.Identity.IdleTTL, cfg.Identity.HardCap, cfg.Identity.MetricTTL)
	regLimiter := ratelimit.NewLimiter(st, "anon:rate:", cfg.Limits.RegistrationWindow, cfg.Limits.RegistrationThreshold)
	msgLimiter := ratelimit.NewLimiter(st, "msg:rate:", cfg.Limits.MessageWindow, cfg.Limits.MessageThreshold)
	channelService := channel.NewService(st, newMemChannelRepo(), 24*time.Hour)
	hub := relay.NewHub()
	router := relay.NewRouter(hub, id, msgLimiter, channelService, cfg.Limits.MaxContentBytes)

	srv := NewHttpServer(cfg, id, regLimiter, hub, router, channelService, nil, st)
	return &serverFixture{
		srv:      srv,
		handler:  srv.Routes(),
		store:    st,
		identity: id,
		hub:      hub,
	}
}

func (f *serverFixture) do(method, path, origin, code string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if origin != "" {
		req.Header.Set("X-Forwarded-For", origin)
	}
	if code != "" {
		req.Header.Set(CodeHeader, code)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) register(t *testing.T, origin string) string {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/identity/register", origin, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AnonymousCode)
	return resp.AnonymousCode
}

func TestRegisterIssuesCode(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/api/identity/register", "203.0.113.7", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Regexp(t, `^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`, resp.AnonymousCode)
	assert.Equal(t, 120, resp.ExpiresInMinutes)
}

func TestRegisterRateLimitPerOrigin(t *testing.T) {
	f := newServerFixture(t)

	for i := 0; i < 5; i++ {
		f.register(t, "203.0.113.7")
	}

	rec := f.do(http.MethodPost, "/api/identity/register", "203.0.113.7", "", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 60, resp.RetryAfterMinutes)

	// a different origin is unaffected
	rec = f.do(http.MethodPost, "/api/identity/register", "198.51.100.9", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// the window resets
	f.store.Advance(61 * time.Minute)
	rec = f.do(http.MethodPost, "/api/identity/register", "203.0.113.7", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusActiveSession(t *testing.T) {
	f := newServerFixture(t)
	code := f.register(t, "203.0.113.7")

	rec := f.do(http.MethodGet, "/api/identity/status", "203.0.113.7", code, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, code, resp.AnonymousCode)
	assert.True(t, resp.IsActive)
	assert.Equal(t, int64(7200), resp.RemainingSeconds)
	assert.Equal(t, int64(120), resp.RemainingMinutes)
	assert.Equal(t, int64(0), resp.MessagesSent)
}

func TestMissingCodeHeader(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/api/identity/status", "203.0.113.7", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredCodeRejected(t *testing.T) {
	f := newServerFixture(t)
	code := f.register(t, "203.0.113.7")

	f.store.Advance(121 * time.Minute)
	rec := f.do(http.MethodGet, "/api/identity/status", "203.0.113.7", code, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevokeThenStatus(t *testing.T) {
	f := newServerFixture(t)
	code := f.register(t, "203.0.113.7")

	rec := f.do(http.MethodPost, "/api/identity/revoke", "203.0.113.7", code, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/identity/status", "203.0.113.7", code, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatedRequestRenewsSession(t *testing.T) {
	f := newServerFixture(t)
	code := f.register(t, "203.0.113.7")

	f.store.Advance(119 * time.Minute)
	rec := f.do(http.MethodGet, "/api/identity/status", "203.0.113.7", code, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// without the renewal above the session would have lapsed here
	f.store.Advance(119 * time.Minute)
	rec = f.do(http.MethodGet, "/api/identity/status", "203.0.113.7", code, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStoreOutageMapsTo503(t *testing.T) {
	f := newServerFixture(t)
	code := f.register(t, "203.0.113.7")

	f.store.Err = assert.AnError
	rec := f.do(http.MethodGet, "/api/identity/status", "203.0.113.7", code, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/api/health", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.store.Err = assert.AnError
	rec = f.do(http.MethodGet, "/api/health", "", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateAndListChannels(t *testing.T) {
	f := newServerFixture(t)
	code := f.register(t, "203.0.113.7")

	rec := f.do(http.MethodPost, "/api/music/channels", "203.0.113.7", code, `{"name":"late night"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var ch model.Channel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))
	assert.Contains(t, ch.ID, "MUSIC-")
	assert.Equal(t, code, ch.CreatorCode)

	rec = f.do(http.MethodGet, "/api/music/channels", "203.0.113.7", code, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Channels []*model.Channel `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Channels, 1)
	assert.Equal(t, int64(1), listing.Channels[0].MemberCount)
}

func TestDeleteChannelRequiresCreator(t *testing.T) {
	f := newServerFixture(t)
	creator := f.register(t, "203.0.113.7")
	other := f.register(t, "198.51.100.9")

	rec := f.do(http.MethodPost, "/api/music/channels", "203.0.113.7", creator, `{"name":"room"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ch model.Channel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))

	rec = f.do(http.MethodDelete, "/api/music/channels/"+ch.ID, "198.51.100.9", other, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodDelete, "/api/music/channels/"+ch.ID, "203.0.113.7", creator, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodDelete, "/api/music/channels/"+ch.ID, "203.0.113.7", creator, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebsocketHandshakeBindsPrincipal(t *testing.T) {
	f := newServerFixture(t)
	code := f.register(t, "203.0.113.7")

	ts := httptest.NewServer(f.handler)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	header := http.Header{}
	header.Set(CodeHeader, code)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	addr := model.UserAddress(code)
	require.Eventually(t, func() bool { return f.hub.IsLive(addr) },
		time.Second, 10*time.Millisecond, "bound connection appears in the hub")
}

func TestWebsocketHandshakeWithoutCodeStaysUnbound(t *testing.T) {
	f := newServerFixture(t)

	ts := httptest.NewServer(f.handler)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	// the upgrade itself succeeds, but the connection is never registered
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.hub.Size())
}
