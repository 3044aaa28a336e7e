package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler runs one job. A returned error dead-letters the delivery.
type Handler func(ctx context.Context, jobID string) error

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
}

// NewConsumer declares the topology and sets prefetch to concurrency so the
// broker never hands out more deliveries than there are workers.
func NewConsumer(url, queue string, concurrency int) (*Consumer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, concurrency: concurrency}, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	log.Printf("[worker] started queue=%s concurrency=%d", c.queue, c.concurrency)
	return serve(ctx, msgs, c.concurrency, handle)
}

var errDeliveriesClosed = errors.New("delivery channel closed")

func serve(ctx context.Context, msgs <-chan amqp.Delivery, concurrency int, handle Handler) error {
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, workerID, d, handle)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("[worker] shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				close(jobs)
				wg.Wait()
				return errDeliveriesClosed
			}
			jobs <- d
		}
	}
}

func handleDelivery(ctx context.Context, workerID int, d amqp.Delivery, handle Handler) {
	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		log.Printf("[worker] worker=%d bad message err=%v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := handle(ctx, m.JobID); err != nil {
		log.Printf("[worker] worker=%d job_id=%s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
		_ = d.Nack(false, false)
		return
	}
	if cost := time.Since(start); cost > 2*time.Second {
		log.Printf("[worker] worker=%d job_id=%s slow cost=%s", workerID, m.JobID, cost)
	}

	if err := d.Ack(false); err != nil {
		log.Printf("[worker] worker=%d ack failed job_id=%s err=%v", workerID, m.JobID, err)
	}
}
