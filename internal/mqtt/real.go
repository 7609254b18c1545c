package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	// BufferCapacity is how many messages are held while the broker is unreachable.
	BufferCapacity = 256

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	closeTimeout   = 3 * time.Second
)

// RealPublisher publishes to an actual MQTT broker. Publish and PublishSystem
// only queue the message; a sender goroutine delivers the outbox, oldest
// first, whenever paho has a connection. Callers never wait on the network.
type RealPublisher struct {
	client      paho.Client
	log         logrus.FieldLogger
	sendTimeout time.Duration

	mu     sync.Mutex // guards outbox
	outbox *outbox

	sending sync.Mutex // one delivery pass at a time, keeps order
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewRealPublisher connects to broker. The client ID carries bootID so
// restarts are distinguishable on the broker. If the broker does not answer
// within the connect timeout the publisher is still returned; paho keeps
// retrying in the background and messages are queued meanwhile.
func NewRealPublisher(broker, bootID string, log logrus.FieldLogger) (*RealPublisher, error) {
	p := newPublisher(nil, log)

	will, err := WillPayload(time.Now())
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID(bootID)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) {
			p.log.WithField("broker", broker).Info("mqtt: connected")
			p.wake()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.WithError(err).Warn("mqtt: connection lost")
		})

	p.client = paho.NewClient(opts)
	p.start()

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		p.log.WithField("broker", broker).Warn("mqtt: broker not reachable yet, queueing")
		return p, nil
	}
	if err := token.Error(); err != nil {
		p.stop()
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// newPublisher builds a publisher without starting the sender, so tests can
// drive delivery with flush.
func newPublisher(client paho.Client, log logrus.FieldLogger) *RealPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RealPublisher{
		client:      client,
		log:         log,
		sendTimeout: publishTimeout,
		outbox:      newOutbox(BufferCapacity, log),
		kick:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// start runs the sender goroutine until stop.
func (p *RealPublisher) start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.kick:
				p.flush()
			case <-p.done:
				return
			}
		}
	}()
}

func (p *RealPublisher) stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

// wake asks the sender to deliver the outbox. It never blocks.
func (p *RealPublisher) wake() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// ClientID returns the MQTT client ID for a boot.
func ClientID(bootID string) string {
	if len(bootID) > 8 {
		bootID = bootID[:8]
	}
	return "vacuum-controller-" + bootID
}

// WillPayload is the retained message the broker publishes if the daemon
// disappears without a clean shutdown.
func WillPayload(ts time.Time) ([]byte, error) {
	return FormatSystemPayload(SystemEvent{
		Timestamp: ts,
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
}

// Publish queues a state-change event for delivery at QoS 0.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(message{topic: TopicEvents, payload: payload})
}

// PublishSystem queues a system lifecycle event for delivery at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(message{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg message) error {
	p.mu.Lock()
	p.outbox.add(msg)
	p.mu.Unlock()
	p.wake()
	return nil
}

// flush delivers the outbox while the connection is open. Sends happen
// without holding mu so publishers are never held up by a slow broker. A
// failed send puts the unsent rest back at the front of the outbox.
func (p *RealPublisher) flush() {
	p.sending.Lock()
	defer p.sending.Unlock()

	var sent int
	for p.client.IsConnectionOpen() {
		p.mu.Lock()
		msgs := p.outbox.take()
		p.mu.Unlock()
		if len(msgs) == 0 {
			break
		}

		for i, msg := range msgs {
			if err := p.send(msg); err != nil {
				p.mu.Lock()
				p.outbox.requeue(msgs[i:])
				pending := p.outbox.len()
				p.mu.Unlock()
				p.log.WithError(err).WithField("pending", pending).Warn("mqtt: delivery interrupted")
				return
			}
			sent++
		}
	}
	if sent > 1 {
		p.log.WithField("count", sent).Debug("mqtt: delivered queued messages")
	}
}

func (p *RealPublisher) send(msg message) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.sendTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// Pending returns the number of queued messages not yet handed to paho.
func (p *RealPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len()
}

// IsConnected reports whether paho currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops the sender, makes one last bounded attempt to deliver what is
// queued (the SHUTDOWN event in practice) and disconnects.
func (p *RealPublisher) Close() error {
	finished := make(chan struct{})
	go func() {
		p.stop()
		p.flush()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(closeTimeout):
		p.log.WithField("pending", p.Pending()).Warn("mqtt: gave up delivering queued messages")
	}

	p.client.Disconnect(1000)
	return nil
}
