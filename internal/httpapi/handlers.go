package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sandeand001/classroom-boss-fight/internal/arena"
	"github.com/sandeand001/classroom-boss-fight/internal/assets"
	"github.com/sandeand001/classroom-boss-fight/internal/engine"
	"github.com/sandeand001/classroom-boss-fight/internal/relay"
	"github.com/sandeand001/classroom-boss-fight/internal/settings"
)

const maxSettingsBody = 4 << 20

type handlers struct {
	Deps
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) State(w http.ResponseWriter, r *http.Request) {
	reply := make(chan arena.View, 1)
	if !h.post(w, arena.GetState{Reply: reply}) {
		return
	}
	writeJSON(w, http.StatusOK, <-reply)
}

func (h *handlers) GuildCommand(kind engine.CommandType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := strconv.Atoi(chi.URLParam(r, "guild"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "guild must be an integer")
			return
		}
		h.run(w, engine.Command{Type: kind, Guild: g})
	}
}

func (h *handlers) Command(kind engine.CommandType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.run(w, engine.Command{Type: kind, Guild: engine.NoGuild})
	}
}

func (h *handlers) run(w http.ResponseWriter, cmd engine.Command) {
	reply := make(chan arena.Result, 1)
	if !h.post(w, arena.FromClient{Cmd: cmd, Reply: reply}) {
		return
	}
	res := <-reply
	switch {
	case errors.Is(res.Err, engine.ErrGuildOutOfRange):
		writeError(w, http.StatusBadRequest, res.Err.Error())
	case res.Err != nil:
		h.Logger.Error("command failed", zap.String("cmd", string(cmd.Type)), zap.Error(res.Err))
		writeError(w, http.StatusInternalServerError, "command failed")
	default:
		writeJSON(w, http.StatusOK, res.View)
	}
}

func (h *handlers) ToggleTimer(w http.ResponseWriter, r *http.Request) {
	reply := make(chan arena.View, 1)
	if !h.post(w, arena.ToggleTimer{Reply: reply}) {
		return
	}
	writeJSON(w, http.StatusOK, <-reply)
}

func (h *handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	reply := make(chan settings.Settings, 1)
	if !h.post(w, arena.GetSettings{Reply: reply}) {
		return
	}
	writeJSON(w, http.StatusOK, <-reply)
}

// PutSettings replaces the configuration. Omitted fields take defaults; a
// boss name without an explicit lock locks when it is not the suggestion.
func (h *handlers) PutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	reply := make(chan arena.Result, 1)
	if !h.post(w, arena.Edit{Raw: body, Reply: reply}) {
		return
	}
	res := <-reply
	switch {
	case errors.Is(res.Err, settings.ErrMalformed):
		writeError(w, http.StatusBadRequest, res.Err.Error())
		return
	case res.Err != nil:
		h.Logger.Error("configure failed", zap.Error(res.Err))
		writeError(w, http.StatusInternalServerError, "configure failed")
		return
	}
	h.GetSettings(w, r)
}

func (h *handlers) Backgrounds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Assets.Backgrounds())
}

func (h *handlers) BackgroundFile(w http.ResponseWriter, r *http.Request) {
	a, err := h.Assets.Background(chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeAsset(w, a)
}

func (h *handlers) Image(w http.ResponseWriter, r *http.Request) {
	a, err := h.Assets.Image(chi.URLParam(r, "subject"), assets.Variant(chi.URLParam(r, "variant")))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeAsset(w, a)
}

func (h *handlers) Sound(w http.ResponseWriter, r *http.Request) {
	a, err := h.Assets.Sound(chi.URLParam(r, "subject"), assets.Cue(chi.URLParam(r, "cue")))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeAsset(w, a)
}

func (h *handlers) RelayLatest(w http.ResponseWriter, r *http.Request) {
	m, err := h.Relay.Latest(r.Context())
	switch {
	case errors.Is(err, relay.ErrEmpty):
		writeError(w, http.StatusNotFound, "no control message yet")
	case err != nil:
		h.Logger.Warn("relay latest failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "relay unavailable")
	default:
		writeJSON(w, http.StatusOK, m)
	}
}

func (h *handlers) post(w http.ResponseWriter, m arena.Msg) bool {
	if !h.Arena.Post(m) {
		writeError(w, http.StatusServiceUnavailable, "arena stopped")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

func writeAsset(w http.ResponseWriter, a assets.Asset) {
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	if a.Fallback {
		w.Header().Set("X-Asset-Fallback", "1")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
