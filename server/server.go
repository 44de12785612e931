// Package server is the boundary surface of the engine: it pushes packed
// world snapshots to renderers over a websocket and exposes single-cell
// reads, config updates and status over plain routes. Nothing else crosses
// the boundary; the views themselves live in external clients.
package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/sirupsen/logrus"

	"evogrid/sim"
	"evogrid/world"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second
	// FrameMagic leads every snapshot frame; "EVOG" in wire byte order.
	FrameMagic = 0x474f5645
)

// Server steps a simulator on a fixed cadence and publishes each new
// snapshot to every connected websocket client. Clients that cannot keep up
// skip frames rather than stall the step loop.
type Server struct {
	addr      string
	sim       *sim.Simulator
	log       *logrus.Logger
	stepEvery time.Duration

	mu   sync.Mutex
	subs map[chan []byte]struct{}
	snap []uint32
}

// New returns a server publishing the given simulator at the given step
// cadence.
func New(addr string, simulator *sim.Simulator, stepEvery time.Duration, log *logrus.Logger) *Server {
	return &Server{
		addr:      addr,
		sim:       simulator,
		log:       log,
		stepEvery: stepEvery,
		subs:      map[chan []byte]struct{}{},
	}
}

// Serve runs the step loop and the HTTP listener until ctx is cancelled or
// the listener fails.
func (s *Server) Serve(ctx context.Context) (err error) {
	r := s.router()

	go s.stepLoop(ctx)

	srv := &http.Server{Addr: s.addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", s.addr).Info("serving")
	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		err = fmt.Errorf("serve: %w", err)
		return
	}
	return nil
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.serveWebsocket)
	r.HandleFunc("/cells/{x:[0-9]+}/{y:[0-9]+}", s.serveCell).Methods(http.MethodGet)
	r.HandleFunc("/config/{name}", s.serveConfig).Methods(http.MethodPut)
	r.HandleFunc("/status", s.serveStatus).Methods(http.MethodGet)
	return r
}

// stepLoop advances the simulator and fans the fresh frame out to
// subscribers.
func (s *Server) stepLoop(ctx context.Context) {
	for range channerics.NewTicker(ctx.Done(), s.stepEvery) {
		s.sim.Step()
		s.broadcast(s.frame())
	}
}

// frame encodes the snapshot wire format: a 16-byte header of magic, tick,
// width and height as little-endian u32, followed by the packed cell words.
func (s *Server) frame() []byte {
	s.mu.Lock()
	s.snap = s.sim.Snapshot(s.snap)
	snap := s.snap
	s.mu.Unlock()

	cfg := s.sim.Config()
	buf := make([]byte, 16+4*len(snap))
	binary.LittleEndian.PutUint32(buf[0:], FrameMagic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(s.sim.Tick()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(cfg.WorldWidth))
	binary.LittleEndian.PutUint32(buf[12:], uint32(cfg.WorldHeight))
	for i, word := range snap {
		binary.LittleEndian.PutUint32(buf[16+4*i:], word)
	}
	return buf
}

func (s *Server) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// broadcast offers the frame to every subscriber without blocking; a client
// whose buffer is full misses this frame and catches the next one.
func (s *Server) broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{}

// serveWebsocket pushes snapshot frames to one client until it disconnects.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer ws.Close()

	frames := s.subscribe()
	defer s.unsubscribe(frames)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read pump only exists to notice closure; control handlers are
	// triggered by the blocking read.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.log.WithField("client", r.RemoteAddr).Info("renderer connected")
	pinger := channerics.NewTicker(ctx.Done(), pingPeriod)
	for {
		select {
		case <-ctx.Done():
			return
		case <-pinger:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case frame := <-frames:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.WithError(err).Warn("publish failed")
				}
				return
			}
		}
	}
}

// cellView is the JSON shape of a single decoded cell.
type cellView struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Kind        string `json:"kind"`
	Direction   int    `json:"direction"`
	Age         int    `json:"age"`
	Energy      int    `json:"energy"`
	Minerals    int    `json:"minerals"`
	DietEat     int    `json:"dietEat"`
	DietPhoto   int    `json:"dietPhoto"`
	DietMineral int    `json:"dietMineral"`
	Color       int    `json:"color"`
	CurrentGene int    `json:"currentGene"`
	Genome      []byte `json:"genome,omitempty"`
}

func toCellView(x, y int, c world.Cell) cellView {
	v := cellView{
		X:           x,
		Y:           y,
		Kind:        c.Kind.String(),
		Direction:   c.Direction,
		Age:         c.Age,
		Energy:      c.Energy,
		Minerals:    c.Minerals,
		DietEat:     c.Diet.Eat,
		DietPhoto:   c.Diet.Photo,
		DietMineral: c.Diet.Mineral,
		Color:       c.Color,
		CurrentGene: c.CurrentGene,
	}
	if c.Kind == world.Active {
		v.Genome = append(v.Genome, c.Genome[:]...)
	}
	return v
}

func (s *Server) serveCell(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	x, _ := strconv.Atoi(vars["x"])
	y, _ := strconv.Atoi(vars["y"])

	cell, err := s.sim.Get(x, y)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, toCellView(x, y, cell))
}

func (s *Server) serveConfig(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var value interface{}
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("decode value: %w", err))
		return
	}
	if err := s.sim.SetConfig(name, value); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.log.WithFields(logrus.Fields{"field": name, "value": value}).Info("config updated")
	writeJSON(w, http.StatusOK, map[string]interface{}{"field": name, "value": value})
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.sim.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tick":   s.sim.Tick(),
		"active": s.sim.ActiveCount(),
		"width":  cfg.WorldWidth,
		"height": cfg.WorldHeight,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
