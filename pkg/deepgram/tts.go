package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	contractx "github.com/superbryn/voice-agent/agent/contract"
)

const speakEndpoint = "https://api.deepgram.com/v1/speak"

// ttsFrameDuration matches the pacing expected by the publishing track.
const ttsFrameDuration = 20 * time.Millisecond

// Synthesize renders text as opus frames ready for track publishing.
// Implements contract.Synthesizer.
func (c *Client) Synthesize(ctx context.Context, text string) (contractx.SpeechAudio, error) {
	if text == "" {
		return contractx.SpeechAudio{}, fmt.Errorf("synthesize: empty text")
	}

	q := url.Values{}
	q.Set("model", c.cfg.TTSModel)
	q.Set("encoding", "opus")
	q.Set("sample_rate", "48000")
	q.Set("container", "none")

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return contractx.SpeechAudio{}, fmt.Errorf("synthesize: encode request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, speakEndpoint+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return contractx.SpeechAudio{}, fmt.Errorf("synthesize: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return contractx.SpeechAudio{}, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return contractx.SpeechAudio{}, fmt.Errorf("synthesize: status %d: %s", resp.StatusCode, detail)
	}

	frames, err := readFrames(resp.Body)
	if err != nil {
		return contractx.SpeechAudio{}, fmt.Errorf("synthesize: read audio: %w", err)
	}
	return contractx.SpeechAudio{Frames: frames, FrameDuration: ttsFrameDuration}, nil
}

// readFrames splits the raw opus stream into chunks sized for one frame
// of playback each.
func readFrames(r io.Reader) ([][]byte, error) {
	const frameSize = 960
	var frames [][]byte
	for {
		buf := make([]byte, frameSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			frames = append(frames, buf[:n])
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
