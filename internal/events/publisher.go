// Package events publishes circulation facts for downstream consumers
// (reporting, integrations). Publishing is best-effort: the loan state in
// the record store is the source of truth, never the event stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "libcirc.circulation"

	routingKeyIssued   = "book.issued"
	routingKeyReturned = "book.returned"
)

// BookIssued is emitted after a loan is created.
type BookIssued struct {
	LoanID   string    `json:"loanId"`
	BookID   string    `json:"bookId"`
	MemberID string    `json:"memberId"`
	IssuedOn time.Time `json:"issuedOn"`
	DueOn    time.Time `json:"dueOn"`
}

// BookReturned is emitted after a return is recorded.
type BookReturned struct {
	LoanID     string    `json:"loanId"`
	BookID     string    `json:"bookId"`
	MemberID   string    `json:"memberId"`
	ReturnedOn time.Time `json:"returnedOn"`
	Fine       float64   `json:"fine"`
}

// Publisher emits circulation events.
type Publisher interface {
	PublishIssued(e BookIssued) error
	PublishReturned(e BookReturned) error
}

// AMQPPublisher sends circulation events to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher connects to the broker and declares the exchange.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, channel: channel}, nil
}

// PublishIssued emits a book.issued event.
func (p *AMQPPublisher) PublishIssued(e BookIssued) error {
	return p.publish(routingKeyIssued, e)
}

// PublishReturned emits a book.returned event.
func (p *AMQPPublisher) PublishReturned(e BookReturned) error {
	return p.publish(routingKeyReturned, e)
}

func (p *AMQPPublisher) publish(key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = p.channel.PublishWithContext(ctx, exchangeName, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
