package contentcheck

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sunzi-skynet/contentcheck-3000/internal/viewsync"
)

// MountConfig configures the HTTP surface.
type MountConfig struct {
	Upgrader *websocket.Upgrader
}

// MountOption configures Mount.
type MountOption func(*MountConfig)

// WithUpgrader replaces the websocket upgrader, e.g. to restrict origins.
func WithUpgrader(u *websocket.Upgrader) MountOption {
	return func(c *MountConfig) { c.Upgrader = u }
}

// Mount returns the handler serving the comparison API, the two annotated
// surface documents, and the websocket sync endpoint:
//
//	POST /compare            run a comparison
//	GET  /result/{id}        stored result JSON
//	GET  /view/{id}/{side}   annotated document for one side
//	GET  /ws?session=&side=  surface sync channel
//	GET  /metrics            collector snapshot
func Mount(c *Comparator, opts ...MountOption) http.Handler {
	cfg := &MountConfig{
		Upgrader: &websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handler{comparator: c, config: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /compare", h.handleCompare)
	mux.HandleFunc("GET /result/{id}", h.handleResult)
	mux.HandleFunc("GET /view/{id}/{side}", h.handleView)
	mux.HandleFunc("GET /ws", h.handleSync)
	mux.HandleFunc("GET /metrics", h.handleMetrics)
	return mux
}

type handler struct {
	comparator *Comparator
	config     *MountConfig
}

type compareRequest struct {
	SourceURL string `json:"sourceUrl"`
	TargetURL string `json:"targetUrl"`
}

func (h *handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SourceURL == "" || req.TargetURL == "" {
		http.Error(w, "sourceUrl and targetUrl are required", http.StatusBadRequest)
		return
	}

	result, err := h.comparator.Compare(r.Context(), req.SourceURL, req.TargetURL)
	if err != nil {
		log.Printf("comparison failed: %v", err)
		http.Error(w, "comparison failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, result)
}

func (h *handler) handleResult(w http.ResponseWriter, r *http.Request) {
	rec, err := h.comparator.Results().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(rec.Result); err != nil {
		log.Printf("write result: %v", err)
	}
}

func (h *handler) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.comparator.Sessions().Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found or expired", http.StatusNotFound)
		return
	}

	var doc string
	switch viewsync.Side(r.PathValue("side")) {
	case viewsync.SideSource:
		doc = sess.SourceDoc
	case viewsync.SideTarget:
		doc = sess.TargetDoc
	default:
		http.Error(w, "side must be source or target", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := strings.NewReader(doc).WriteTo(w); err != nil {
		log.Printf("write view: %v", err)
	}
}

func (h *handler) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.comparator.Metrics().GetSnapshot())
}

// handleSync upgrades a surface connection and bridges it to the session's
// coordinator. When the second side connects, the sync cycle starts.
func (h *handler) handleSync(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.comparator.Sessions().Get(r.URL.Query().Get("session"))
	if !ok {
		http.Error(w, "session not found or expired", http.StatusNotFound)
		return
	}
	side := viewsync.Side(r.URL.Query().Get("side"))
	if side != viewsync.SideSource && side != viewsync.SideTarget {
		http.Error(w, "side must be source or target", http.StatusBadRequest)
		return
	}

	conn, err := h.config.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	surface := &wsSurface{conn: conn}
	h.comparator.Metrics().SurfaceConnect()
	if both := sess.Coordinator.Attach(side, surface); both {
		sess.Coordinator.Enable()
	}
	defer func() {
		sess.Coordinator.Detach(side)
		h.comparator.Metrics().SurfaceDisconnect()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			return
		}

		msg, err := viewsync.Decode(data)
		if err != nil {
			log.Printf("malformed sync message: %v", err)
			continue
		}
		if msg == nil {
			// Unknown message type: ignored by contract.
			continue
		}
		sess.Coordinator.HandleMessage(msg)
	}
}

// wsSurface adapts a websocket connection to the coordinator's Surface.
// Writes are serialized: the coordinator may send from multiple goroutines
// (timer callbacks and the peer's read loop).
type wsSurface struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSurface) Send(msg viewsync.Message) error {
	data, err := viewsync.Encode(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
