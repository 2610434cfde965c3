package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/errs"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/pkg/log"
)

// closeGrace is how long Finish waits for trailing transcript events after
// asking the provider to close the stream.
const closeGrace = 5 * time.Second

// Factory creates live transcription connections against a
// Deepgram-compatible websocket endpoint.
type Factory struct {
	cfg config.STTConfig
}

func NewFactory(cfg config.STTConfig) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) NewConnection() pipeline.LiveTranscriber {
	return &Connection{
		cfg:         f.cfg,
		transcripts: make(chan string, 32),
		readDone:    make(chan struct{}),
	}
}

// Connection is one live websocket transcription stream. Raw audio chunks go
// in with Send; transcript fragments come out on Transcripts. The provider
// speaks the Deepgram live protocol: JSON result events with transcript
// alternatives, a CloseStream text message to end the session.
type Connection struct {
	cfg config.STTConfig

	sendMu sync.Mutex
	conn   *websocket.Conn

	transcripts chan string
	readDone    chan struct{}
	finishOnce  sync.Once
}

// resultEvent is the subset of the provider's live result payload we use.
type resultEvent struct {
	Type    string `json:"type"`
	IsFinal *bool  `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (c *Connection) Start(ctx context.Context, language string) error {
	endpoint, err := url.Parse(c.cfg.URL)
	if err != nil {
		return errs.Wrap(err, errs.TypeTranscriptionConnection, "invalid transcription endpoint")
	}
	query := endpoint.Query()
	query.Set("model", c.cfg.Model)
	query.Set("smart_format", "true")
	if language != "" && language != "auto" {
		query.Set("language", language)
	}
	endpoint.RawQuery = query.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+c.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		return errs.Wrap(err, errs.TypeTranscriptionConnection,
			fmt.Sprintf("dial %s", endpoint.Host))
	}
	c.conn = conn

	go c.readLoop()
	return nil
}

// Send pushes one raw audio chunk to the provider.
func (c *Connection) Send(chunk []byte) error {
	if c.conn == nil {
		return errs.New(errs.TypeTranscriptionConnection, "connection not started")
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// Finish asks the provider to close the stream, waits briefly for trailing
// transcripts and tears the socket down. The Transcripts channel is closed
// once the provider stops sending.
func (c *Connection) Finish() error {
	if c.conn == nil {
		return errs.New(errs.TypeTranscriptionConnection, "connection not started")
	}

	var writeErr error
	c.finishOnce.Do(func() {
		c.sendMu.Lock()
		writeErr = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		c.sendMu.Unlock()

		select {
		case <-c.readDone:
		case <-time.After(closeGrace):
			log.Warn("Transcription connection: close grace elapsed before provider drained")
		}
		_ = c.conn.Close()
	})

	if writeErr != nil {
		return errs.Wrap(writeErr, errs.TypeTranscriptionConnection, "close transcription stream")
	}
	return nil
}

func (c *Connection) Transcripts() <-chan string {
	return c.transcripts
}

// readLoop turns provider result events into transcript fragment sends. It
// owns the transcripts channel and closes it when the socket ends.
func (c *Connection) readLoop() {
	defer close(c.readDone)
	defer close(c.transcripts)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Transcription connection read ended: %v", err)
			}
			return
		}

		var event resultEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Warn("Transcription connection: unparseable event: %v", err)
			continue
		}
		if event.Type != "" && event.Type != "Results" {
			continue
		}
		// Interim results repeat text that a later final event supersedes.
		if event.IsFinal != nil && !*event.IsFinal {
			continue
		}
		if len(event.Channel.Alternatives) == 0 {
			continue
		}
		transcript := event.Channel.Alternatives[0].Transcript
		if transcript == "" {
			continue
		}
		c.transcripts <- transcript
	}
}
