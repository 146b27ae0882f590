package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livewhisper/internal/events"
)

// Client talks to a LibreTranslate compatible endpoint.
type Client struct {
	base string
	http *http.Client
}

func New(base string, timeoutSec int) *Client {
	if timeoutSec <= 0 {
		timeoutSec = 8
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Translate returns map[target] => {"primary": string, "alternatives": []string}.
// An empty text or target list yields an empty map without any request.
func (c *Client) Translate(ctx context.Context, text string, targets []string) (map[string]any, error) {
	out := make(map[string]any, len(targets))
	if c == nil || c.base == "" || strings.TrimSpace(text) == "" {
		return out, nil
	}

	for _, tgt := range targets {
		b, _ := json.Marshal(map[string]any{
			"q":      text,
			"source": "auto",
			"target": tgt,
			"format": "text",
		})
		entry, err := c.translateOne(ctx, b, tgt)
		if err != nil {
			return nil, err
		}
		out[tgt] = entry
	}
	return out, nil
}

func (c *Client) translateOne(ctx context.Context, payload []byte, target string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("translation http %d for target %s", resp.StatusCode, target)
	}

	var lr struct {
		TranslatedText string   `json:"translatedText"`
		Alternatives   []string `json:"alternatives"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, err
	}

	entry := map[string]any{"primary": strings.TrimSpace(lr.TranslatedText)}
	var alts []string
	for _, a := range lr.Alternatives {
		if s := strings.TrimSpace(a); s != "" {
			alts = append(alts, s)
		}
	}
	if len(alts) > 0 {
		entry["alternatives"] = alts
	}
	return entry, nil
}

// Emitter attaches translations to each event before handing it to Next.
// A failed translation is logged and the event is published untranslated.
type Emitter struct {
	Client  *Client
	Targets []string
	Next    events.Emitter
}

func (e *Emitter) Publish(ctx context.Context, ev events.Event) error {
	if len(e.Targets) > 0 && ev.Text != "" {
		m, err := e.Client.Translate(ctx, ev.Text, e.Targets)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("text", ev.Text).Msg("translation request failed")
		case len(m) > 0:
			ev.Translations = m
		}
	}
	return e.Next.Publish(ctx, ev)
}
