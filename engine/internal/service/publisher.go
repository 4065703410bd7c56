package service

import (
	"context"

	natsclient "github.com/clearline-systems/clearline-engine/common/messaging/nats"
)

// jetStreamPublisher adapts the JetStream client to the Publisher interface,
// using acknowledged publishes so stream writes are durable.
type jetStreamPublisher struct {
	js *natsclient.JetStreamClient
}

func NewJetStreamPublisher(js *natsclient.JetStreamClient) Publisher {
	return &jetStreamPublisher{js: js}
}

func (p *jetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.js.PublishSync(ctx, subject, data)
	return err
}
