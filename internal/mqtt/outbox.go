package mqtt

import "github.com/sirupsen/logrus"

// message is a serialized publish held for replay.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox queues messages while the broker is unreachable. Once full, the
// oldest message is dropped for each new one. The caller must synchronize.
type outbox struct {
	limit   int
	queue   []message
	dropped int // since the last take
	log     logrus.FieldLogger
}

func newOutbox(limit int, log logrus.FieldLogger) *outbox {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &outbox{limit: limit, log: log}
}

func (o *outbox) add(m message) {
	if len(o.queue) >= o.limit {
		if o.dropped == 0 {
			o.log.WithField("limit", o.limit).Warn("mqtt: outbox full, dropping oldest")
		}
		o.dropped++
		o.queue = append(o.queue[:0], o.queue[1:]...)
	}
	o.queue = append(o.queue, m)
}

// requeue puts msgs back at the front, ahead of anything added since they
// were taken. Overflow drops from the front as add does.
func (o *outbox) requeue(msgs []message) {
	merged := append(append([]message(nil), msgs...), o.queue...)
	if over := len(merged) - o.limit; over > 0 {
		o.dropped += over
		merged = merged[over:]
	}
	o.queue = merged
}

// take empties the outbox, oldest first.
func (o *outbox) take() []message {
	if len(o.queue) == 0 {
		return nil
	}
	if o.dropped > 0 {
		o.log.WithField("dropped", o.dropped).Warn("mqtt: messages lost while offline")
		o.dropped = 0
	}
	msgs := o.queue
	o.queue = nil
	return msgs
}

func (o *outbox) len() int {
	return len(o.queue)
}
