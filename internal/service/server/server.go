package server

import (
	"context"
	"net/http"

	"anon_messenger/internal/config"
	"anon_messenger/internal/model"
	"anon_messenger/internal/service/catalog"
	"anon_messenger/internal/service/channel"
	"anon_messenger/internal/service/identity"
	"anon_messenger/internal/service/ratelimit"
	"anon_messenger/internal/service/relay"
	"anon_messenger/internal/service/store"
	"anon_messenger/internal/utils/log"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CodeHeader carries the identity code on the websocket handshake and on
// every stateless request.
const CodeHeader = model.CodeHeader

type (
	HttpServer struct {
		cfg *config.Config

		identityService *identity.Service
		regLimiter      *ratelimit.Limiter
		hub             *relay.Hub
		router          *relay.Router
		channelService  *channel.Service
		catalogService  *catalog.Service
		store           store.Client

		srv *http.Server
	}
)

func NewHttpServer(
	cfg *config.Config,
	identityService *identity.Service,
	regLimiter *ratelimit.Limiter,
	hub *relay.Hub,
	router *relay.Router,
	channelService *channel.Service,
	catalogService *catalog.Service,
	st store.Client,
) *HttpServer {
	return &HttpServer{
		cfg:             cfg,
		identityService: identityService,
		regLimiter:      regLimiter,
		hub:             hub,
		router:          router,
		channelService:  channelService,
		catalogService:  catalogService,
		store:           st,
	}
}

// Routes builds the full HTTP surface. Split out from Run so tests can mount
// it on httptest servers.
func (s *HttpServer) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.authMiddleware)

	r.HandleFunc("/api/identity/register", s.HandleRegister()).Methods(http.MethodPost)
	r.HandleFunc("/api/identity/revoke", s.HandleRevoke()).Methods(http.MethodPost)
	r.HandleFunc("/api/identity/status", s.HandleStatus()).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.HandleInitWS()).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.HandleHealth()).Methods(http.MethodGet)

	r.HandleFunc("/api/music/channels", s.HandleCreateChannel()).Methods(http.MethodPost)
	r.HandleFunc("/api/music/channels", s.HandleListChannels()).Methods(http.MethodGet)
	r.HandleFunc("/api/music/channels/{id}", s.HandleDeleteChannel()).Methods(http.MethodDelete)
	r.HandleFunc("/api/music/channels/{id}/join", s.HandleJoinChannel()).Methods(http.MethodPost)
	r.HandleFunc("/api/music/channels/{id}/leave", s.HandleLeaveChannel()).Methods(http.MethodPost)
	r.HandleFunc("/api/music/channels/{id}/queue", s.HandleQueue()).Methods(http.MethodGet)
	r.HandleFunc("/api/music/channels/{id}/queue", s.HandleAddTrack()).Methods(http.MethodPost)
	r.HandleFunc("/api/music/channels/{id}/queue/reorder", s.HandleReorderQueue()).Methods(http.MethodPost)
	r.HandleFunc("/api/music/channels/{id}/state", s.HandleChannelState()).Methods(http.MethodGet)
	r.HandleFunc("/api/music/search", s.HandleSearch()).Methods(http.MethodGet)

	return r
}

func (s *HttpServer) Run() error {
	s.srv = &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.Routes(),
	}

	log.Info("http server listening", zap.String("addr", s.cfg.Server.Addr))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *HttpServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
