package server

import (
	_ "embed"
	"fmt"
	"net/http"
)

//go:embed web/index.html
var indexHTML []byte

// Handler exposes the HTTP routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleIndex)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(a.cfg.StaticDir))))
	mux.HandleFunc("GET /ws", a.handleWebSocket)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	return mux
}

func handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sessions, rooms := a.hub.Stats()
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ok sessions=%d rooms=%d typing_rooms=%d\n", sessions, rooms, a.typing.Rooms())
}
