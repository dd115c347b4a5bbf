package coordinator

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the coordinator's exported counters (specification §4.11
// "Metrics"), registered against an injected prometheus.Registerer so
// callers can choose whether/where to expose them.
type Metrics struct {
	TasksTotal      prometheus.Counter
	CacheHitsTotal  prometheus.Counter
	EventBusLagged  prometheus.Counter
}

// NewMetrics registers cuenv's coordinator/scheduler counters against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cuenv_tasks_total", Help: "Total number of tasks run by the scheduler.",
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cuenv_cache_hits_total", Help: "Total number of cache hits observed by the scheduler.",
		}),
		EventBusLagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cuenv_event_bus_lagged_total", Help: "Total number of events dropped by lagging event bus consumers.",
		}),
	}
	reg.MustRegister(m.TasksTotal, m.CacheHitsTotal, m.EventBusLagged)
	return m
}

// Server is the out-of-process broker: it accepts Producer and
// Consumer connections over a Unix socket and fans every Event from
// any producer out to every registered consumer (specification §4.10).
type Server struct {
	SocketPath string
	Bus        *eventbus.Bus
	Log        *slog.Logger
	Metrics    *Metrics

	listener net.Listener

	mu        sync.Mutex
	consumers map[*conn]struct{}
}

type conn struct {
	nc   net.Conn
	kind ClientKind
	mu   sync.Mutex // guards writes; readFrame has no concurrent readers per-conn
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeFrame(c.nc, msg)
}

// NewServer constructs a Server bound to socketPath, not yet listening.
func NewServer(socketPath string, bus *eventbus.Bus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{SocketPath: socketPath, Bus: bus, Log: log, consumers: map[*conn]struct{}{}}
}

// ListenAndServe removes any stale socket file, binds the Unix socket,
// and serves connections until the listener is closed. It also starts
// one goroutine forwarding Bus events to every registered consumer.
func (s *Server) ListenAndServe() error {
	_ = os.Remove(s.SocketPath)
	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return cuenverr.Wrap(cuenverr.CoordinatorUnavailable, "listen on coordinator socket", s.SocketPath, err)
	}
	s.listener = ln

	sub := s.Bus.Subscribe()
	go s.forwardBusEvents(sub)

	for {
		nc, err := ln.Accept()
		if err != nil {
			return nil // listener closed; normal shutdown path
		}
		go s.handleConn(nc)
	}
}

// WritePIDFile records this process's PID at pidPath so clients can
// verify a stale socket's owner before signaling it (specification
// §4.10 "Staleness detection").
func (s *Server) WritePIDFile(pidPath string) error {
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.SocketPath)
	return err
}

func (s *Server) forwardBusEvents(sub *eventbus.Subscription) {
	var reportedLag int64
	for ev := range sub.Events() {
		payload, err := encodePayload(EventPayload{Event: ev})
		if err != nil {
			s.Log.Warn("coordinator: encode bus event", "err", err)
			continue
		}
		s.broadcast(Message{MsgType: MsgEvent, Payload: payload})
		// Lagged is cumulative; only the increase since the last report is added.
		if lagged := sub.Lagged(); lagged > reportedLag && s.Metrics != nil {
			s.Metrics.EventBusLagged.Add(float64(lagged - reportedLag))
			reportedLag = lagged
		}
	}
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.consumers))
	for c := range s.consumers {
		targets = append(targets, c)
	}
	s.mu.Unlock()
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			s.Log.Debug("coordinator: drop unresponsive consumer", "err", err)
			s.removeConsumer(c)
		}
	}
}

func (s *Server) addConsumer(c *conn) {
	s.mu.Lock()
	s.consumers[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeConsumer(c *conn) {
	s.mu.Lock()
	delete(s.consumers, c)
	s.mu.Unlock()
	_ = c.nc.Close()
}

// handleConn drives one client connection's lifecycle: it must Register
// before any Event is accepted (specification §4.10 "Registration ack
// must arrive before the client sends events"), then the connection is
// routed according to its declared kind.
func (s *Server) handleConn(nc net.Conn) {
	c := &conn{nc: nc}
	defer nc.Close()

	msg, err := readFrame(nc)
	if err != nil || msg.MsgType != MsgRegister {
		_ = writeFrame(nc, Message{MsgType: MsgError, Payload: mustEncode(ErrorPayload{Message: "first message must be Register"})})
		return
	}

	var reg RegisterPayload
	if err := msg.decodePayload(&reg); err != nil {
		_ = writeFrame(nc, Message{MsgType: MsgError, Payload: mustEncode(ErrorPayload{Message: err.Error()})})
		return
	}
	c.kind = reg.Kind

	ackPayload, _ := encodePayload(RegisterAckPayload{Success: true})
	if err := writeFrame(nc, Message{MsgType: MsgRegisterAck, CorrelationID: msg.CorrelationID, Payload: ackPayload}); err != nil {
		return
	}

	if reg.Kind == ClientConsumer {
		s.addConsumer(c)
		defer s.removeConsumer(c)
	}

	for {
		msg, err := readFrame(nc)
		if err != nil {
			return
		}
		switch msg.MsgType {
		case MsgPing:
			_ = c.send(Message{MsgType: MsgPong, CorrelationID: msg.CorrelationID})
		case MsgEvent:
			var ev EventPayload
			if err := msg.decodePayload(&ev); err != nil {
				continue
			}
			s.Bus.Publish(ev.Event)
			if s.Metrics != nil {
				switch ev.Event.Type {
				case eventbus.Started:
					s.Metrics.TasksTotal.Inc()
				case eventbus.CacheHit:
					s.Metrics.CacheHitsTotal.Inc()
				}
			}
		}
	}
}

func mustEncode(v any) []byte {
	b, _ := encodePayload(v)
	return b
}
