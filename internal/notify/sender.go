package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking/internal/logger"
)

// Sender delivers notifications on a best-effort basis.  Send reports
// whether the message was handed to the transport; failures are logged by
// the implementation and never returned.
type Sender interface {
	Send(ctx context.Context, recipient, template string, data map[string]any) bool
}

// NopSender drops every notification.  It is used when no broker is
// configured.
type NopSender struct{}

func (NopSender) Send(context.Context, string, string, map[string]any) bool { return false }

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(ctx context.Context, url string) (channel, func() error, error)

// maxDialTimeout bounds a connection attempt when ctx has a later deadline
// or none.
const maxDialTimeout = 5 * time.Second

// dialAMQP connects within the time left on ctx.  The timeout covers the
// TCP connect and the AMQP handshake.
func dialAMQP(ctx context.Context, url string) (channel, func() error, error) {
	timeout := maxDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return nil, nil, context.DeadlineExceeded
	}
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// Publisher publishes notifications to QueueName.  The connection is opened
// on first use and reopened after any publish failure, so a broker outage
// only costs the notifications sent while it lasts.
type Publisher struct {
	url  string
	dial dialFunc
	log  *logrus.Entry

	// sem is a one-slot lock over ch and closeConn; acquiring it honours
	// the caller's context.
	sem       chan struct{}
	ch        channel
	closeConn func() error
}

// NewPublisher returns a publisher for the broker at url.  No connection is
// made until the first Send.
func NewPublisher(url string) *Publisher {
	return &Publisher{
		url:  url,
		dial: dialAMQP,
		log:  logger.WithComponent("notify"),
		sem:  make(chan struct{}, 1),
	}
}

// Send publishes one persistent message.  It returns false when the broker
// is unreachable, rejects the publish or ctx ends first, including while
// another Send is still dialing.
func (p *Publisher) Send(ctx context.Context, recipient, template string, data map[string]any) bool {
	msg := Message{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Template:  template,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	entry := p.log.WithFields(logrus.Fields{"message_id": msg.ID, "template": template, "recipient": recipient})

	body, err := json.Marshal(msg)
	if err != nil {
		entry.WithError(err).Warn("notification marshal failed")
		return false
	}

	if err := p.lock(ctx); err != nil {
		entry.WithError(err).Warn("notification dropped while broker connection busy")
		return false
	}
	defer p.unlock()

	ch, err := p.channel(ctx)
	if err != nil {
		entry.WithError(err).Warn("notification broker unavailable")
		return false
	}
	err = ch.PublishWithContext(ctx,
		"",        // default exchange
		QueueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.CreatedAt,
			Body:         body,
		})
	if err != nil {
		entry.WithError(err).Warn("notification publish failed")
		p.reset()
		return false
	}
	entry.Debug("notification published")
	return true
}

func (p *Publisher) lock(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) unlock() { <-p.sem }

// channel returns the open channel, dialing when needed.  The caller holds
// the lock.
func (p *Publisher) channel(ctx context.Context) (channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, closeConn, err := p.dial(ctx, p.url)
	if err != nil {
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = closeConn()
		return nil, err
	}
	p.ch, p.closeConn = ch, closeConn
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}

// Close releases the broker connection.  It waits for an in-flight Send.
func (p *Publisher) Close() error {
	_ = p.lock(context.Background())
	defer p.unlock()
	p.reset()
	return nil
}
