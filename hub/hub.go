package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kaireichart/vor-nav-display/catalog"
	"github.com/kaireichart/vor-nav-display/display"
	"github.com/kaireichart/vor-nav-display/events"
	"github.com/kaireichart/vor-nav-display/indicator"
	"github.com/kaireichart/vor-nav-display/log"
)

const writeWait = time.Second

// Options wire the hub to the rest of the application. Everything except
// Picker and Views may be nil.
type Options struct {
	Picker    Picker
	Views     Snapshotter
	Tiles     TileSource
	Catalog   *catalog.Catalog
	Journal   *events.Journal
	Producer  ProducerState
	Interval  time.Duration
	Logger    *log.Logger
	newTicker func(time.Duration) indicator.Ticker
}

type reply struct {
	conn *websocket.Conn
	msg  OutMessage
}

// Hub is the renderer side of the display: it owns every browser
// connection and is the only goroutine that writes to them. Published
// views and indicator toggles are handed to Run over channels.
type Hub struct {
	opts     Options
	lg       *log.Logger
	flasher  *indicator.Controller
	upgrader websocket.Upgrader

	views      chan display.View
	poke       chan struct{}
	replies    chan reply
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}

	mu      sync.Mutex
	pending map[string]bool

	// Owned by Run.
	clients map[*websocket.Conn]bool
	current *display.View
	lit     map[string]bool
}

func New(opts Options) *Hub {
	h := &Hub{
		opts:       opts,
		lg:         opts.Logger,
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		views:      make(chan display.View, 1),
		poke:       make(chan struct{}, 1),
		replies:    make(chan reply, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		pending:    make(map[string]bool),
		clients:    make(map[*websocket.Conn]bool),
		lit:        make(map[string]bool),
	}
	if opts.newTicker != nil {
		h.flasher = indicator.NewControllerWithTicker(opts.Interval, h, opts.newTicker)
	} else {
		h.flasher = indicator.NewController(opts.Interval, h)
	}
	return h
}

// Publish implements display.Publisher. It never blocks: an unread view
// is replaced by the newer one.
func (h *Hub) Publish(v display.View) {
	for {
		select {
		case h.views <- v:
			return
		default:
		}
		select {
		case <-h.views:
		default:
		}
	}
}

// Indicate implements indicator.Sink. Only the latest state per target is
// kept until Run picks it up.
func (h *Hub) Indicate(target string, on bool) {
	h.mu.Lock()
	h.pending[target] = on
	h.mu.Unlock()

	select {
	case h.poke <- struct{}{}:
	default:
	}
}

// Run delivers views and indicator changes to connected browsers until
// ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	defer h.flasher.Close()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				c.Close()
			}
			return nil

		case c := <-h.register:
			h.clients[c] = true
			h.lg.Info("display client connected", "remote", c.RemoteAddr().String(), "clients", len(h.clients))
			if h.current != nil {
				h.send(c, OutMessage{Type: MsgView, View: h.current})
			}
			for target, on := range h.lit {
				h.send(c, indicatorMessage(target, on))
			}

		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				c.Close()
				h.lg.Info("display client disconnected", "remote", c.RemoteAddr().String(), "clients", len(h.clients))
			}

		case v := <-h.views:
			h.current = &v
			h.syncIndicators(v)
			h.broadcast(OutMessage{Type: MsgView, View: &v})

		case <-h.poke:
			h.mu.Lock()
			changes := maps.Clone(h.pending)
			clear(h.pending)
			h.mu.Unlock()

			for target, on := range changes {
				h.lit[target] = on
				h.broadcast(indicatorMessage(target, on))
			}

		case r := <-h.replies:
			if h.clients[r.conn] {
				h.send(r.conn, r.msg)
			}
		}
	}
}

// syncIndicators keeps the flashing targets in line with the view: the
// origin control flashes while a new origin is needed and the status
// line flashes while the location is lost.
func (h *Hub) syncIndicators(v display.View) {
	if v.NeedsOrigin {
		h.flasher.StartFlashing(indicator.TargetOrigin)
	} else {
		h.flasher.StopFlashing(indicator.TargetOrigin)
	}
	if v.Mode == display.LocationLost {
		h.flasher.StartFlashing(indicator.TargetStatus)
	} else {
		h.flasher.StopFlashing(indicator.TargetStatus)
	}
}

// Flashing lists the targets currently flashing.
func (h *Hub) Flashing() []string {
	return h.flasher.Active()
}

func (h *Hub) broadcast(msg OutMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.lg.Errorf("failed to encode %s message: %v", msg.Type, err)
		return
	}
	for c := range h.clients {
		if err := h.write(c, payload); err != nil {
			h.lg.Warn("dropping display client", "remote", c.RemoteAddr().String(), "error", err)
			delete(h.clients, c)
			c.Close()
		}
	}
}

func (h *Hub) send(c *websocket.Conn, msg OutMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.lg.Errorf("failed to encode %s message: %v", msg.Type, err)
		return
	}
	if err := h.write(c, payload); err != nil {
		h.lg.Warn("dropping display client", "remote", c.RemoteAddr().String(), "error", err)
		delete(h.clients, c)
		c.Close()
	}
}

func (h *Hub) write(c *websocket.Conn, payload []byte) error {
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.TextMessage, payload)
}

func indicatorMessage(target string, on bool) OutMessage {
	return OutMessage{Type: MsgIndicator, Target: target, On: &on}
}

// serveWS upgrades the connection and reads pick requests from it until
// it closes.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warnf("websocket upgrade failed: %v", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	h.readLoop(r.Context(), conn)
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()

	for {
		var in InMessage
		if err := conn.ReadJSON(&in); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				h.lg.Debug("websocket read ended", "error", err)
			}
			return
		}
		if err := h.handle(ctx, in); err != nil {
			h.lg.Warn("pick request failed", "type", in.Type, "error", err)
			h.reply(conn, OutMessage{Type: MsgError, Message: err.Error()})
		}
	}
}

func (h *Hub) handle(ctx context.Context, in InMessage) error {
	switch in.Type {
	case MsgPick:
		c, err := in.coordinate()
		if err != nil {
			return err
		}
		return h.opts.Picker.Pick(ctx, c)
	case MsgPickStation:
		_, err := h.opts.Picker.PickStation(ctx, in.Query)
		return err
	default:
		return fmt.Errorf("%w: unknown message type %q", errBadRequest, in.Type)
	}
}

func (h *Hub) reply(conn *websocket.Conn, msg OutMessage) {
	select {
	case h.replies <- reply{conn: conn, msg: msg}:
	case <-h.done:
	}
}
