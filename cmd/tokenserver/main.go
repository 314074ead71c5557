package main

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/rs/zerolog/log"
	configx "github.com/superbryn/voice-agent/pkg/config"
	_ "github.com/superbryn/voice-agent/pkg/logger/autoload"
)

// Config holds what the token server needs: LiveKit credentials to mint
// join tokens and the listen address.
type Config struct {
	Port          string        `envconfig:"PORT" default:"3001"`
	LiveKitURL    string        `envconfig:"LIVEKIT_URL"`
	LiveKitKey    string        `envconfig:"LIVEKIT_API_KEY"`
	LiveKitSecret string        `envconfig:"LIVEKIT_API_SECRET"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	DefaultRoom   string        `envconfig:"DEFAULT_ROOM" default:"superbryn-room"`
}

type tokenRequest struct {
	RoomName        string `json:"roomName"`
	ParticipantName string `json:"participantName"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	RoomName string `json:"roomName"`
}

func main() {
	cfg := configx.MustNew[Config]("")

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "superbryn-token-server", "status": "ok"})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	app.Post("/api/livekit-token", issueToken(cfg))
	app.Get("/debug/synthesize", debugTone)
	app.Post("/debug/synthesize", debugTone)

	log.Info().Str("port", cfg.Port).Msg("token server listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("token server stopped")
	}
}

func issueToken(cfg *Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.LiveKitKey == "" || cfg.LiveKitSecret == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "LiveKit credentials not configured",
			})
		}

		var req tokenRequest
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.RoomName == "" {
			req.RoomName = cfg.DefaultRoom
		}
		if req.ParticipantName == "" {
			req.ParticipantName = "caller-" + uuid.NewString()[:8]
		}

		grant := &auth.VideoGrant{
			RoomJoin: true,
			Room:     req.RoomName,
		}
		token, err := auth.NewAccessToken(cfg.LiveKitKey, cfg.LiveKitSecret).
			SetVideoGrant(grant).
			SetIdentity(req.ParticipantName).
			SetName(req.ParticipantName).
			SetValidFor(cfg.TokenTTL).
			ToJWT()
		if err != nil {
			log.Error().Err(err).Msg("token mint failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create token"})
		}

		return c.JSON(tokenResponse{
			Token:    token,
			URL:      cfg.LiveKitURL,
			RoomName: req.RoomName,
		})
	}
}

// debugTone returns one second of a 440Hz sine as WAV, for verifying the
// audio path without spending synthesis credits.
func debugTone(c *fiber.Ctx) error {
	const (
		sampleRate = 16000
		freq       = 440.0
		seconds    = 1
	)

	samples := make([]int16, sampleRate*seconds)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}

	c.Set(fiber.HeaderContentType, "audio/wav")
	return c.Send(wavEncode(samples, sampleRate))
}

// wavEncode wraps 16-bit mono PCM samples in a RIFF/WAVE header.
func wavEncode(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}
