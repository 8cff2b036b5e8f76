// Package observer streams match frames to read-only viewers over websocket.
package observer

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/harp-lab/maze-game/internal/sim/arena"
	"github.com/harp-lab/maze-game/internal/sim/geom"
)

// Version is the viewer protocol version.
const Version = "1"

const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// SubscribeMsg is the first message a viewer sends, as a JSON text message or
// a msgpack binary message.
type SubscribeMsg struct {
	Type            string `json:"type" msgpack:"type"`
	ProtocolVersion string `json:"protocol_version" msgpack:"protocol_version"`
	Format          string `json:"format,omitempty" msgpack:"format,omitempty"`
}

// Bootstrap is served once per viewer; frames never repeat the static walls.
type Bootstrap struct {
	ProtocolVersion string         `json:"protocol_version"`
	MatchID         string         `json:"match_id"`
	Tick            uint64         `json:"tick"`
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	TickRateHz      int            `json:"tick_rate_hz"`
	MatchTicks      int            `json:"match_ticks"`
	Seed            int64          `json:"seed"`
	Agents          []string       `json:"agents"`
	Walls           []geom.Segment `json:"walls"`
}

type FrameMsg struct {
	Type            string      `json:"type" msgpack:"type"`
	ProtocolVersion string      `json:"protocol_version" msgpack:"protocol_version"`
	Frame           arena.Frame `json:"frame" msgpack:"frame"`
}

type viewer struct {
	id     string
	format string
	out    chan []byte
}

// Server fans frames out to connected viewers. It is a frames.Sink: a slow
// viewer loses frames instead of stalling the pipeline.
type Server struct {
	boot Bootstrap
	log  *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	lastTick atomic.Uint64
	drops    atomic.Uint64

	mu      sync.Mutex
	viewers map[string]*viewer
	closed  bool
}

func NewServer(boot Bootstrap, logger *log.Logger) *Server {
	boot.ProtocolVersion = Version
	return &Server{
		boot:    boot,
		log:     logger,
		viewers: map[string]*viewer{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler serves the bootstrap and websocket endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	return mux
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := s.boot
		resp.Tick = s.lastTick.Load()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, err := decodeSubscribe(mt, msg)
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, err.Error())
			return
		}

		v := &viewer{
			id:     fmt.Sprintf("V%d", s.nextID.Add(1)),
			format: sub.Format,
			out:    make(chan []byte, 64),
		}
		if !s.join(v) {
			closeWith(conn, websocket.CloseGoingAway, "match over")
			return
		}
		defer s.leave(v.id)
		s.log.Info("viewer joined", "id", v.id, "format", v.format, "remote", r.RemoteAddr)

		msgType := websocket.TextMessage
		if v.format == FormatMsgpack {
			msgType = websocket.BinaryMessage
		}
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for b := range v.out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(msgType, b); err != nil {
					return
				}
			}
			closeWith(conn, websocket.CloseNormalClosure, "match over")
			_ = conn.Close()
		}()

		// Viewers never send after SUBSCRIBE; reading only detects the close.
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		s.leave(v.id)

		select {
		case <-writerDone:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Info("viewer left", "id", v.id)
	}
}

func decodeSubscribe(mt int, msg []byte) (SubscribeMsg, error) {
	var sub SubscribeMsg
	var err error
	switch mt {
	case websocket.TextMessage:
		err = json.Unmarshal(msg, &sub)
	case websocket.BinaryMessage:
		err = msgpack.Unmarshal(msg, &sub)
		if sub.Format == "" {
			sub.Format = FormatMsgpack
		}
	default:
		return sub, fmt.Errorf("bad subscribe")
	}
	if err != nil {
		return sub, fmt.Errorf("bad subscribe")
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != Version {
		return sub, fmt.Errorf("expected SUBSCRIBE")
	}
	if sub.Format == "" {
		sub.Format = FormatJSON
	}
	if sub.Format != FormatJSON && sub.Format != FormatMsgpack {
		return sub, fmt.Errorf("unsupported format %q", sub.Format)
	}
	return sub, nil
}

func (s *Server) join(v *viewer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.viewers[v.id] = v
	return true
}

func (s *Server) leave(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.viewers[id]; ok {
		delete(s.viewers, id)
		close(v.out)
	}
}

// Viewers returns the number of subscribed viewers.
func (s *Server) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// Drops counts frames not delivered to a viewer whose queue was full.
func (s *Server) Drops() uint64 { return s.drops.Load() }

// WriteFrame encodes the frame once per format in use and queues it to every
// viewer without blocking.
func (s *Server) WriteFrame(f arena.Frame) error {
	s.lastTick.Store(f.Tick)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.viewers) == 0 {
		return nil
	}
	msg := FrameMsg{Type: "FRAME", ProtocolVersion: Version, Frame: f}
	encoded := map[string][]byte{}
	for _, v := range s.viewers {
		b, ok := encoded[v.format]
		if !ok {
			var err error
			if v.format == FormatMsgpack {
				b, err = msgpack.Marshal(msg)
			} else {
				b, err = json.Marshal(msg)
			}
			if err != nil {
				return fmt.Errorf("encode frame %d: %w", f.Tick, err)
			}
			encoded[v.format] = b
		}
		select {
		case v.out <- b:
		default:
			s.drops.Add(1)
		}
	}
	return nil
}

// Close ends every viewer stream with a normal closure.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, v := range s.viewers {
		delete(s.viewers, id)
		close(v.out)
	}
	return nil
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
