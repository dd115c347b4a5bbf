package coordinator

import (
	"net"
	"time"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/google/uuid"
)

// Producer is a one-shot client that emits task-lifecycle events to the
// coordinator (specification §4.10 "Client types").
type Producer struct {
	nc net.Conn
}

// DialProducer connects to the coordinator at socketPath and registers
// as a Producer identified by command (typically the CLI invocation's
// argv[1:] joined).
func DialProducer(socketPath, command string) (*Producer, error) {
	nc, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, cuenverr.Wrap(cuenverr.CoordinatorUnavailable, "dial coordinator", socketPath, err)
	}
	if err := register(nc, RegisterPayload{Kind: ClientProducer, Command: command}); err != nil {
		nc.Close()
		return nil, err
	}
	return &Producer{nc: nc}, nil
}

// Emit sends ev to the coordinator for broadcast to every consumer.
func (p *Producer) Emit(ev eventbus.Event) error {
	payload, err := encodePayload(EventPayload{Event: ev})
	if err != nil {
		return err
	}
	return writeFrame(p.nc, Message{MsgType: MsgEvent, Payload: payload})
}

// Close disconnects the producer.
func (p *Producer) Close() error { return p.nc.Close() }

// Consumer is a long-lived client that receives every Event broadcast
// by the coordinator (specification §4.10 "Client types").
type Consumer struct {
	nc     net.Conn
	events chan eventbus.Event
	errs   chan error
}

// DialConsumer connects to the coordinator at socketPath and registers
// as a Consumer of the given UI type.
func DialConsumer(socketPath string, uiType ConsumerUIType) (*Consumer, error) {
	nc, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, cuenverr.Wrap(cuenverr.CoordinatorUnavailable, "dial coordinator", socketPath, err)
	}
	if err := register(nc, RegisterPayload{Kind: ClientConsumer, UIType: uiType}); err != nil {
		nc.Close()
		return nil, err
	}
	c := &Consumer{nc: nc, events: make(chan eventbus.Event, 256), errs: make(chan error, 1)}
	go c.readLoop()
	return c, nil
}

func (c *Consumer) readLoop() {
	defer close(c.events)
	for {
		msg, err := readFrame(c.nc)
		if err != nil {
			c.errs <- err
			return
		}
		if msg.MsgType != MsgEvent {
			continue
		}
		var ev EventPayload
		if err := msg.decodePayload(&ev); err != nil {
			continue
		}
		c.events <- ev.Event
	}
}

// Events returns the channel of events broadcast by the coordinator.
// It closes when the connection ends; Err reports why.
func (c *Consumer) Events() <-chan eventbus.Event { return c.events }

// Err returns the error that ended the read loop, if any is queued.
func (c *Consumer) Err() error {
	select {
	case err := <-c.errs:
		return err
	default:
		return nil
	}
}

// Close disconnects the consumer.
func (c *Consumer) Close() error { return c.nc.Close() }

func register(nc net.Conn, reg RegisterPayload) error {
	_ = nc.SetDeadline(time.Now().Add(PingTimeout))
	defer nc.SetDeadline(time.Time{})

	payload, err := encodePayload(reg)
	if err != nil {
		return err
	}
	corr := uuid.NewString()
	if err := writeFrame(nc, Message{MsgType: MsgRegister, CorrelationID: corr, Payload: payload}); err != nil {
		return err
	}
	msg, err := readFrame(nc)
	if err != nil {
		return cuenverr.Wrap(cuenverr.CoordinatorUnavailable, "await register ack", "", err)
	}
	if msg.MsgType == MsgError {
		var errPayload ErrorPayload
		_ = msg.decodePayload(&errPayload)
		return cuenverr.New(cuenverr.WireProtocolError, "register", errPayload.Message)
	}
	var ack RegisterAckPayload
	if err := msg.decodePayload(&ack); err != nil {
		return err
	}
	if !ack.Success {
		return cuenverr.New(cuenverr.WireProtocolError, "register rejected", ack.Error)
	}
	return nil
}
