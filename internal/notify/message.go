// Package notify carries purchase notifications over RabbitMQ.  The API
// process publishes through a Sender; the notifier process consumes the
// queue and delivers each message.
package notify

import "time"

// QueueName is the durable queue shared by publisher and consumer.
const QueueName = "notifications.purchase"

// TemplateTicketsPurchased is sent after a successful ticket purchase.
const TemplateTicketsPurchased = "tickets_purchased"

// Message is the JSON body of one notification.  Data is opaque to the
// transport and interpreted by the template.
type Message struct {
	ID        string         `json:"id"`
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
