package sink

import (
	"encoding/json"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"crashsentry/common/format/report"
	"crashsentry/common/task"
)

type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitClient struct {
	connection *amqp.Connection
	channel    publisher
	queue      string
}

type RabbitSink struct {
	rabbit *RabbitClient
}

func (s *RabbitSink) Send(reports []*report.Report, done Completion) {
	var delivered []string
	for _, r := range reports {
		if err := s.sendReport(r); err != nil {
			log.WithError(err).
				WithField("id", r.Id).
				Error("Can't publish crash report")
			continue
		}
		delivered = append(delivered, r.Id)
	}

	log.WithFields(log.Fields{
		"queue":     s.rabbit.queue,
		"delivered": len(delivered),
		"total":     len(reports),
	}).Debug("Published crash reports")

	if done != nil {
		done(delivered, len(delivered) == len(reports))
	}
}

func (s *RabbitSink) sendReport(r *report.Report) error {
	msg, err := json.Marshal(task.CreateReportTask(r))
	if err != nil {
		log.WithError(err).Error("Can't serialize message")
		return errors.Wrap(err, 0)
	}
	return s.publish(msg)
}

func (s *RabbitSink) publish(msg []byte) error {
	return s.rabbit.channel.Publish("",
		s.rabbit.queue,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         msg,
		})
}

func (s *RabbitSink) Close() error {
	if s.rabbit.connection == nil {
		return nil
	}
	return s.rabbit.connection.Close()
}

func newRabbitClient(server, queue string) (*RabbitClient, error) {
	conn, err := amqp.Dial(server)
	if err != nil {
		log.WithError(err).Error("Failed to connect to RabbitMQ")
		return nil, errors.Wrap(err, 0)
	}

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Error("Failed to open a channel")
		conn.Close()
		return nil, errors.Wrap(err, 0)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.WithError(err).Error("Failed to declare a queue")
		conn.Close()
		return nil, errors.Wrap(err, 0)
	}

	return &RabbitClient{conn, ch, q.Name}, nil
}

func NewRabbitSink(server, queue string) (*RabbitSink, error) {
	client, err := newRabbitClient(server, queue)
	if err != nil {
		return nil, err
	}
	return &RabbitSink{client}, nil
}
