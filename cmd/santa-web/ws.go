package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unklstewy/santa-scope/pkg/scene"
	"github.com/unklstewy/santa-scope/pkg/tracker"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// frameMessage is pushed to every websocket client on each tick.
type frameMessage struct {
	Type     string           `json:"type"`
	Snapshot tracker.Snapshot `json:"snapshot"`
	Scene    scene.Scene      `json:"scene"`
}

// pointerRequest is a browser pointer event. Buttons follow the DOM
// numbering: 0 primary, 1 middle, 2 secondary.
type pointerRequest struct {
	Kind    string  `json:"kind"`
	Button  int     `json:"button"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Notches float64 `json:"notches"`
	Touches int     `json:"touches"`
	Spread  float64 `json:"spread"`
}

var pointerKinds = map[string]tracker.PointerKind{
	"down":       tracker.PointerDown,
	"move":       tracker.PointerMove,
	"up":         tracker.PointerUp,
	"wheel":      tracker.Wheel,
	"touchstart": tracker.TouchStart,
	"touchmove":  tracker.TouchMove,
	"touchend":   tracker.TouchEnd,
}

func (p pointerRequest) event() (tracker.PointerEvent, error) {
	kind, ok := pointerKinds[strings.ToLower(p.Kind)]
	if !ok {
		return tracker.PointerEvent{}, fmt.Errorf("unknown pointer kind %q", p.Kind)
	}

	button := tracker.ButtonNone
	switch kind {
	case tracker.PointerDown, tracker.PointerUp:
		switch p.Button {
		case 0:
			button = tracker.ButtonPrimary
		case 1:
			button = tracker.ButtonMiddle
		case 2:
			button = tracker.ButtonSecondary
		}
	}

	return tracker.PointerEvent{
		Kind:    kind,
		Button:  button,
		X:       p.X,
		Y:       p.Y,
		Notches: p.Notches,
		Touches: p.Touches,
		Spread:  p.Spread,
	}, nil
}

// originChecker accepts same-host requests and any listed origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// handleWebSocket streams frames to the client and applies the pointer
// events it sends back. All clients share one camera.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.logger.With().Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("websocket client connected")
	defer log.Info().Msg("websocket client disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readPump(conn)
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.pushFrame(conn); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-s.closing:
			s.sendClose(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case <-r.Context().Done():
			s.sendClose(conn, websocket.CloseGoingAway, "")
			return
		case <-ticker.C:
			if err := s.pushFrame(conn); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) pushFrame(conn *websocket.Conn) error {
	msg := frameMessage{
		Type:     "frame",
		Scene:    s.engine.Frame(time.Now()),
		Snapshot: s.engine.State().Snapshot(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (s *Server) sendClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.logger.Debug().Err(err).Msg("websocket close failed")
	}
}

// readPump decodes pointer events until the connection closes.
func (s *Server) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req pointerRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		ev, err := req.event()
		if err != nil {
			s.logger.Debug().Err(err).Msg("ignoring websocket message")
			continue
		}
		s.engine.Controller().HandlePointer(ev)
	}
}
