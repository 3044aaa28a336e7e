package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobMessage is the body of every queued delivery.
type JobMessage struct {
	JobID string `json:"job_id"`
}

func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// DeclareTopology declares the durable main queue and its dead-letter
// queue. Publisher and consumer must declare with identical arguments.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	dlq := DeadLetterQueue(queue)

	if _, err := ch.QueueDeclare(
		dlq,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		},
	)
	return err
}
