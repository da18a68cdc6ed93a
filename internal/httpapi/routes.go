package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sandeand001/classroom-boss-fight/internal/arena"
	"github.com/sandeand001/classroom-boss-fight/internal/assets"
	"github.com/sandeand001/classroom-boss-fight/internal/engine"
	"github.com/sandeand001/classroom-boss-fight/internal/relay"
	"github.com/sandeand001/classroom-boss-fight/internal/ws"
)

type Deps struct {
	Arena  *arena.Arena
	Assets *assets.Library
	// Slot is served on /relay when set.
	Slot  relay.Slot
	Relay *relay.Relay
	// DockTokenHash is a bcrypt hash; empty leaves /relay open.
	DockTokenHash []byte
	Logger        *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	r.Get("/healthz", Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.State)
		r.Post("/guilds/{guild}/hit", h.GuildCommand(engine.CmdHit))
		r.Post("/guilds/{guild}/miss", h.GuildCommand(engine.CmdMiss))
		r.Post("/undo", h.Command(engine.CmdUndo))
		r.Post("/reset", h.Command(engine.CmdReset))
		r.Post("/timer", h.ToggleTimer)
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSettings)
		r.Get("/backgrounds", h.Backgrounds)
		r.Get("/relay/latest", h.RelayLatest)
	})

	r.Get("/assets/backgrounds/{name}", h.BackgroundFile)
	r.Get("/assets/{subject}/images/{variant}", h.Image)
	r.Get("/assets/{subject}/sounds/{cue}", h.Sound)

	r.Get("/ws", ws.Handler(d.Arena, d.Logger))
	if d.Slot != nil {
		r.With(RequireToken(d.DockTokenHash)).Get("/relay", ws.RelayHandler(d.Slot, d.Logger))
	}
	return r
}
