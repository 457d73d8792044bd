package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"anon_messenger/internal/model"
	"anon_messenger/internal/service/catalog"
	"anon_messenger/internal/service/channel"
	"anon_messenger/internal/utils/log"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *HttpServer) HandleCreateChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "Invalid Request", "channel name is required")
			return
		}

		ch, err := s.channelService.Create(r.Context(), req.Name, Principal(r))
		if err != nil {
			log.Error("create channel failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to create channel")
			return
		}
		writeJSON(w, http.StatusCreated, ch)
	}
}

func (s *HttpServer) HandleListChannels() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels, err := s.channelService.List(r.Context())
		if err != nil {
			log.Error("list channels failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to list channels")
			return
		}
		if channels == nil {
			channels = []*model.Channel{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
	}
}

func (s *HttpServer) HandleDeleteChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		deleted, err := s.channelService.Delete(r.Context(), id, Principal(r))
		if errors.Is(err, channel.ErrNotCreator) {
			writeError(w, http.StatusForbidden, "Access Denied",
				"Only the channel creator can delete it")
			return
		}
		if err != nil {
			log.Error("delete channel failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to delete channel")
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, "Not Found", "Channel does not exist")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Channel deleted"})
	}
}

func (s *HttpServer) HandleJoinChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := s.channelService.Join(r.Context(), id, Principal(r)); err != nil {
			log.Error("join channel failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to join channel")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Joined channel"})
	}
}

func (s *HttpServer) HandleLeaveChannel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := s.channelService.Leave(r.Context(), id, Principal(r)); err != nil {
			log.Error("leave channel failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to leave channel")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Left channel"})
	}
}

func (s *HttpServer) HandleQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		queue, err := s.channelService.Queue(r.Context(), id)
		if err != nil {
			log.Error("get queue failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to read queue")
			return
		}
		if queue == nil {
			queue = []model.Track{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"queue": queue})
	}
}

func (s *HttpServer) HandleAddTrack() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var track model.Track
		if err := json.NewDecoder(r.Body).Decode(&track); err != nil || len(track) == 0 {
			writeError(w, http.StatusBadRequest, "Invalid Request", "track data is required")
			return
		}

		if err := s.channelService.AddTrack(r.Context(), id, track); err != nil {
			log.Error("add track failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to add track")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Track added"})
	}
}

func (s *HttpServer) HandleReorderQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req struct {
			OldIndex *int `json:"old_index"`
			NewIndex *int `json:"new_index"`
			Remove   *int `json:"remove_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid Request", "malformed body")
			return
		}

		var err error
		switch {
		case req.Remove != nil:
			err = s.channelService.RemoveTrack(r.Context(), id, int64(*req.Remove))
		case req.OldIndex != nil && req.NewIndex != nil:
			err = s.channelService.ReorderQueue(r.Context(), id, *req.OldIndex, *req.NewIndex)
		default:
			writeError(w, http.StatusBadRequest, "Invalid Request",
				"either remove_index or old_index/new_index is required")
			return
		}
		if err != nil {
			log.Error("reorder queue failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to modify queue")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Queue updated"})
	}
}

func (s *HttpServer) HandleChannelState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		state, err := s.channelService.PlaybackState(r.Context(), id)
		if err != nil {
			log.Error("get playback state failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error",
				"Failed to read playback state")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": state})
	}
}

func (s *HttpServer) HandleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		source := r.URL.Query().Get("source")
		if query == "" {
			writeError(w, http.StatusBadRequest, "Invalid Request", "q is required")
			return
		}
		if source == "" {
			source = "spotify"
		}

		data, err := s.catalogService.Search(r.Context(), query, source)
		switch {
		case errors.Is(err, catalog.ErrUnknownSource):
			writeError(w, http.StatusBadRequest, "Invalid Request",
				"source must be spotify or youtube")
		case errors.Is(err, catalog.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "Service Temporarily Unavailable",
				"Search source is not configured")
		case err != nil:
			log.Error("catalog search failed",
				zap.String("source", source),
				zap.Error(err))
			writeError(w, http.StatusBadGateway, "Upstream Error",
				"Search request failed")
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
		}
	}
}
