// Package memory contains an in-memory publisher used when no Pub/Sub project is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
)

// Publisher keeps run events in memory so local runs can be inspected without Pub/Sub.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the message and returns an ID of the form "memory-<topic>-<n>".
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("memory-%s-%d", topic, len(p.messages)+1)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload})
	return id, nil
}

// Messages returns a copy of the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// RunEvents returns the run completion events published to topic, oldest first.
func (p *Publisher) RunEvents(topic string) []crawler.RunEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []crawler.RunEvent
	for _, m := range p.messages {
		if m.Topic != topic {
			continue
		}
		switch ev := m.Payload.(type) {
		case crawler.RunEvent:
			out = append(out, ev)
		case *crawler.RunEvent:
			if ev != nil {
				out = append(out, *ev)
			}
		}
	}
	return out
}
