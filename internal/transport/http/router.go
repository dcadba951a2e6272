package http

import (
	"net/http"
	"time"

	httpmw "github.com/Magraj71/NewMeetSUM/internal/transport/http/middleware"
	"github.com/Magraj71/NewMeetSUM/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBody = 8 << 20 // must exceed the 5 MB attachment cap plus encoding overhead

func NewRouter(h *Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmw.Metrics)
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.MaxBodySize(maxRequestBody))

	// Browser peers poll from any origin; room ids are the only capability.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// WS endpoint (push transport)
	r.Get("/ws/rooms/{id}", wsServer.HandleWS)

	// Pull transport
	r.Group(func(pr chi.Router) {
		pr.Use(middlewareChi.Timeout(10 * time.Second))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Get("/", h.GetOverview)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Post("/join", h.JoinRoom)
				rr.Post("/leave", h.LeaveRoom)
				rr.Get("/members", h.GetMembers)
				rr.Post("/signals", h.SendSignal)
				rr.Get("/signals", h.GetSignals)
				rr.Post("/chat", h.SendChat)
				rr.Get("/chat", h.GetChat)
				rr.Delete("/chat", h.ClearChat)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
