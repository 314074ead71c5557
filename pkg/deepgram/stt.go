package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	contractx "github.com/superbryn/voice-agent/agent/contract"
)

const listenHost = "api.deepgram.com"

// liveMessage is the subset of the live transcription response we read.
type liveMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	// speech_final marks a detected end of utterance; is_final alone only
	// closes the current interim segment.
	SpeechFinal bool `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Stream is one live transcription websocket session.
type Stream struct {
	conn        *websocket.Conn
	transcripts chan contractx.Transcript

	mu     sync.Mutex
	closed bool
}

// OpenStream dials the live transcription endpoint for opus audio at the
// given sample rate and starts the read loop. Implements
// contract.Transcriber.
func (c *Client) OpenStream(ctx context.Context, sampleRate, channels int) (contractx.SpeechStream, error) {
	q := url.Values{}
	q.Set("model", c.cfg.STTModel)
	q.Set("language", c.cfg.Language)
	q.Set("encoding", "opus")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", strconv.Itoa(channels))
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", "300")

	u := url.URL{Scheme: "wss", Host: listenHost, Path: "/v1/listen", RawQuery: q.Encode()}
	header := http.Header{"Authorization": []string{"Token " + c.cfg.APIKey}}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial transcription stream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial transcription stream: %w", err)
	}

	s := &Stream{
		conn:        conn,
		transcripts: make(chan contractx.Transcript, 16),
	}
	go s.readLoop()
	return s, nil
}

// SendAudio forwards one opus packet to the recognizer.
func (s *Stream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("transcription stream closed")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

func (s *Stream) Transcripts() <-chan contractx.Transcript {
	return s.transcripts
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	// CloseStream tells Deepgram to flush pending results before hangup.
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	return s.conn.Close()
}

// readLoop accumulates finalized interim segments and emits one Final
// transcript per detected end of utterance.
func (s *Stream) readLoop() {
	defer close(s.transcripts)

	var segments []string
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasClosed := s.closed
			s.mu.Unlock()
			if !wasClosed {
				log.Warn().Err(err).Msg("transcription stream read failed")
			}
			return
		}

		text, confidence, final, ok := parseLiveMessage(data)
		if !ok {
			continue
		}
		if text != "" {
			segments = append(segments, text)
		}
		if !final {
			continue
		}

		utterance := strings.TrimSpace(strings.Join(segments, " "))
		segments = segments[:0]
		if utterance == "" {
			continue
		}
		s.transcripts <- contractx.Transcript{Text: utterance, Confidence: confidence, Final: true}
	}
}

// parseLiveMessage extracts the top alternative from a results message.
// Only finalized segments (is_final) are surfaced; the caller joins them
// and final reports speech_final, the end of the utterance.
func parseLiveMessage(data []byte) (text string, confidence float64, final bool, ok bool) {
	var msg liveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", 0, false, false
	}
	if msg.Type != "" && msg.Type != "Results" {
		return "", 0, false, false
	}
	if len(msg.Channel.Alternatives) == 0 {
		return "", 0, false, false
	}
	alt := msg.Channel.Alternatives[0]
	if !msg.IsFinal {
		// Interim hypotheses are noisy; only finalized segments matter here.
		return "", 0, false, false
	}
	return strings.TrimSpace(alt.Transcript), alt.Confidence, msg.SpeechFinal, true
}
