package server

import (
	"net/http"

	"anon_messenger/internal/model"
	"anon_messenger/internal/service/relay"
	"anon_messenger/internal/utils/log"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandleInitWS upgrades the connection and binds the code from the
// handshake header as the connection's fixed principal. Binding happens
// exactly once; there is no re-authentication on an open socket.
//
// A failed or missing code does not abort the upgrade: the socket stays up
// unbound, is never registered in the hub, and every routed action on it is
// rejected downstream. It dies by heartbeat timeout.
func (s *HttpServer) HandleInitWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		principal := ""
		code := r.Header.Get(CodeHeader)
		if code != "" {
			if err := s.identityService.ValidateAndRenew(r.Context(), code); err == nil {
				principal = code
			} else {
				log.Warn("websocket authentication failed", zap.Error(err))
			}
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Failed to upgrade", http.StatusInternalServerError)
			return
		}

		conn := relay.NewConn(ws, principal, s.cfg.Relay.SendBuffer)
		if principal != "" {
			addr := model.UserAddress(principal)
			s.hub.Register(addr, conn)
			log.Info("websocket authenticated", zap.String("principal", principal))

			go conn.WriteLoop(s.cfg.Relay.HeartbeatInterval)
			go func() {
				conn.ReadLoop(s.router, s.cfg.Relay.HeartbeatInterval)
				s.hub.Unregister(addr, conn)
			}()
			return
		}

		go conn.WriteLoop(s.cfg.Relay.HeartbeatInterval)
		go conn.ReadLoop(s.router, s.cfg.Relay.HeartbeatInterval)
	}
}
