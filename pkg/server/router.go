package server

import (
	_ "embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/observer"
)

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// Stream accepts connection events from the transport.
type Stream interface {
	Notify(ev observer.Event) bool
}

type routerStruct struct {
	router   chi.Router
	cfg      config.ServerConfig
	channels int
	stream   Stream
	upgrader websocket.Upgrader
	log      zerolog.Logger

	wg sync.WaitGroup
}

// SetupRouter registers the page, health and stream endpoints on chiRouter.
func SetupRouter(chiRouter chi.Router, cfg *config.Config, stream Stream, log zerolog.Logger) *routerStruct {
	r := &routerStruct{
		router:   chiRouter,
		cfg:      cfg.Server,
		channels: cfg.Acquisition.Channels,
		stream:   stream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "server").Logger(),
	}

	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.Recoverer)
	chiRouter.Use(r.requestLogger)

	chiRouter.Get("/", r.index)
	chiRouter.Get("/health", r.health)
	chiRouter.Get(cfg.Server.StreamPath, r.serveStream)

	return r
}

// Handler returns the configured router.
func (r *routerStruct) Handler() http.Handler {
	return r.router
}

// Wait blocks until every stream connection has finished.
func (r *routerStruct) Wait() {
	r.wg.Wait()
}

func (r *routerStruct) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, req)

		r.log.Debug().
			Str("request_id", middleware.GetReqID(req.Context())).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (r *routerStruct) health(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (r *routerStruct) index(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	data := struct {
		Channels   int
		StreamPath string
	}{
		Channels:   r.channels,
		StreamPath: r.cfg.StreamPath,
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		r.log.Error().Err(err).Msg("failed to render index")
	}
}
