package deepgram

import (
	"time"
)

// Config holds the Deepgram credentials and model choices. Loaded from
// the environment with the DEEPGRAM prefix.
type Config struct {
	APIKey   string        `envconfig:"API_KEY" required:"true"`
	STTModel string        `envconfig:"STT_MODEL" default:"nova-2"`
	TTSModel string        `envconfig:"TTS_MODEL" default:"aura-asteria-en"`
	Language string        `envconfig:"LANGUAGE" default:"en-US"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

// Client talks to the Deepgram live transcription and speech APIs.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}
