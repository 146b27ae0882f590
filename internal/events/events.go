package events

import (
	"context"
	"errors"
)

const Transcription = "transcription"

// Event is what subscribers receive: {"type":"transcription","text":"..."}.
type Event struct {
	Type         string         `json:"type"`
	Text         string         `json:"text"`
	Translations map[string]any `json:"translations,omitempty"`
}

func NewTranscription(text string) Event {
	return Event{Type: Transcription, Text: text}
}

// Emitter delivers events to subscribers. Delivery is fire-and-forget; an
// error only reports that the event could not be handed to the transport.
type Emitter interface {
	Publish(ctx context.Context, ev Event) error
}

// Func adapts a function to Emitter.
type Func func(ctx context.Context, ev Event) error

func (f Func) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Multi publishes to every emitter in order and joins their errors.
type Multi []Emitter

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
