package livekit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
	contractx "github.com/superbryn/voice-agent/agent/contract"
)

// Config holds room connection settings, loaded with the LIVEKIT prefix.
type Config struct {
	URL                string        `envconfig:"URL" required:"true"`
	APIKey             string        `envconfig:"API_KEY" required:"true"`
	APISecret          string        `envconfig:"API_SECRET" required:"true"`
	RoomName           string        `envconfig:"ROOM_NAME" default:"superbryn-room"`
	Identity           string        `envconfig:"IDENTITY" default:"superbryn-agent"`
	ParticipantTimeout time.Duration `envconfig:"PARTICIPANT_TIMEOUT" default:"30s"`
}

// Adapter joins a room as the agent participant, pumps subscribed mic
// audio through the transcriber, and exposes the call as a normalized
// event stream. It also plays synthesized speech on a published track
// and mirrors observability events onto the room data channel.
type Adapter struct {
	cfg         Config
	transcriber contractx.Transcriber
	synthesizer contractx.Synthesizer

	room   *lksdk.Room
	track  *lksdk.LocalSampleTrack
	events chan contractx.Event

	participantOnce sync.Once
	participantCh   chan struct{}
	closeOnce       sync.Once
}

func New(cfg Config, transcriber contractx.Transcriber, synthesizer contractx.Synthesizer) (*Adapter, error) {
	if transcriber == nil {
		return nil, fmt.Errorf("%w: nil transcriber", contractx.ErrValidation)
	}
	if synthesizer == nil {
		return nil, fmt.Errorf("%w: nil synthesizer", contractx.ErrValidation)
	}
	return &Adapter{
		cfg:           cfg,
		transcriber:   transcriber,
		synthesizer:   synthesizer,
		events:        make(chan contractx.Event, 32),
		participantCh: make(chan struct{}),
	}, nil
}

// Connect joins the room and publishes the agent's audio track.
func (a *Adapter) Connect(ctx context.Context) error {
	room, err := lksdk.ConnectToRoom(a.cfg.URL, lksdk.ConnectInfo{
		APIKey:              a.cfg.APIKey,
		APISecret:           a.cfg.APISecret,
		RoomName:            a.cfg.RoomName,
		ParticipantIdentity: a.cfg.Identity,
		ParticipantName:     a.cfg.Identity,
	}, &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackPublished:  a.onTrackPublished,
			OnTrackSubscribed: a.onTrackSubscribed,
		},
		OnParticipantConnected:    a.onParticipantConnected,
		OnParticipantDisconnected: a.onParticipantDisconnected,
		OnDisconnected:            a.onDisconnected,
	})
	if err != nil {
		return fmt.Errorf("connect to room %s: %w", a.cfg.RoomName, err)
	}
	a.room = room

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  1,
	})
	if err != nil {
		a.Close()
		return fmt.Errorf("create audio track: %w", err)
	}
	if _, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   "agent-speech",
		Source: livekit.TrackSource_MICROPHONE,
	}); err != nil {
		a.Close()
		return fmt.Errorf("publish audio track: %w", err)
	}
	a.track = track

	// A caller may already be in the room with tracks up before we join.
	for _, rp := range room.GetRemoteParticipants() {
		a.onParticipantConnected(rp)
		for _, pub := range rp.TrackPublications() {
			if remote, ok := pub.(*lksdk.RemoteTrackPublication); ok {
				a.onTrackPublished(remote, rp)
			}
		}
	}

	log.Info().Str("room", a.cfg.RoomName).Str("identity", a.cfg.Identity).Msg("connected to room")
	return nil
}

// WaitForParticipant blocks until a remote participant joins or the
// timeout elapses.
func (a *Adapter) WaitForParticipant(ctx context.Context) error {
	select {
	case <-a.participantCh:
		return nil
	case <-time.After(a.cfg.ParticipantTimeout):
		return fmt.Errorf("%w: no participant joined %s within %s",
			contractx.ErrNoParticipant, a.cfg.RoomName, a.cfg.ParticipantTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events delivers the normalized call events. Closed on teardown.
func (a *Adapter) Events() <-chan contractx.Event {
	return a.events
}

func (a *Adapter) onParticipantConnected(rp *lksdk.RemoteParticipant) {
	log.Info().Str("identity", rp.Identity()).Msg("participant connected")
	a.participantOnce.Do(func() { close(a.participantCh) })
}

func (a *Adapter) onParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	log.Info().Str("identity", rp.Identity()).Msg("participant disconnected")
	a.sendEvent(contractx.SessionClosedEvent{Reason: "participant disconnected"})
}

func (a *Adapter) onDisconnected() {
	a.sendEvent(contractx.SessionClosedEvent{Reason: "room disconnected"})
}

func (a *Adapter) onTrackPublished(publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if publication.Kind() != lksdk.TrackKindAudio {
		return
	}
	if rp.Identity() == a.cfg.Identity {
		return
	}
	if err := publication.SetSubscribed(true); err != nil {
		log.Warn().Err(err).Str("identity", rp.Identity()).Msg("subscribe to audio track failed")
	}
}

func (a *Adapter) onTrackSubscribed(
	track *webrtc.TrackRemote,
	publication *lksdk.RemoteTrackPublication,
	rp *lksdk.RemoteParticipant,
) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	log.Info().Str("identity", rp.Identity()).Str("track", publication.SID()).Msg("audio track subscribed")
	go a.pumpAudio(track, rp.Identity())
}

// pumpAudio feeds the remote audio track through the transcriber and
// turns final transcripts into user events.
func (a *Adapter) pumpAudio(track *webrtc.TrackRemote, identity string) {
	ctx := context.Background()
	codec := track.Codec()
	stream, err := a.transcriber.OpenStream(ctx, int(codec.ClockRate), int(codec.Channels))
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("open transcription stream failed")
		return
	}
	defer stream.Close()

	go func() {
		for transcript := range stream.Transcripts() {
			if !transcript.Final {
				continue
			}
			log.Debug().
				Str("identity", identity).
				Float64("confidence", transcript.Confidence).
				Msg("utterance transcribed")
			a.sendEvent(contractx.UserTranscribedEvent{Text: transcript.Text, At: time.Now()})
		}
	}()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("identity", identity).Msg("audio track ended")
			return
		}
		if err := forwardPacket(stream, pkt); err != nil {
			log.Warn().Err(err).Str("identity", identity).Msg("forward audio failed")
			return
		}
	}
}

// forwardPacket ships one RTP payload to the recognizer. Empty payloads
// (opus DTX) are skipped.
func forwardPacket(stream contractx.SpeechStream, pkt *rtp.Packet) error {
	if pkt == nil || len(pkt.Payload) == 0 {
		return nil
	}
	return stream.SendAudio(pkt.Payload)
}

// Speak synthesizes text and plays it on the published track. Implements
// contract.Speaker. Playback is paced at the frame duration so the room
// receives audio in real time.
func (a *Adapter) Speak(ctx context.Context, text string) error {
	if a.track == nil {
		return fmt.Errorf("%w: no published track", contractx.ErrSessionClosed)
	}
	audio, err := a.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}

	frameDur := audio.FrameDuration
	if frameDur <= 0 {
		frameDur = 20 * time.Millisecond
	}
	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()
	for _, frame := range audio.Frames {
		if err := a.track.WriteSample(media.Sample{
			Data:     frame,
			Duration: frameDur,
		}, nil); err != nil {
			return fmt.Errorf("write audio sample: %w", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// dataTopic is the single data-channel topic frontends listen on; the
// event's Type field distinguishes payloads.
const dataTopic = "tool-events"

// Publish mirrors an event onto the room data channel. Implements
// contract.Publisher.
func (a *Adapter) Publish(_ context.Context, _ string, event contractx.WireEvent) error {
	if a.room == nil {
		return fmt.Errorf("%w: not connected", contractx.ErrSessionClosed)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return a.room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishTopic(dataTopic),
		lksdk.WithDataPublishReliable(true),
	)
}

// MonitorTracks logs the room's track topology for a short window after
// connect. Diagnostic aid for audio routing problems.
func (a *Adapter) MonitorTracks(ctx context.Context, duration, interval time.Duration) {
	go func() {
		deadline := time.After(duration)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-deadline:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if a.room == nil {
					return
				}
				for _, rp := range a.room.GetRemoteParticipants() {
					for _, pub := range rp.TrackPublications() {
						remote, ok := pub.(*lksdk.RemoteTrackPublication)
						if !ok {
							continue
						}
						log.Debug().
							Str("identity", rp.Identity()).
							Str("track", remote.SID()).
							Str("kind", string(remote.Kind())).
							Bool("subscribed", remote.IsSubscribed()).
							Msg("remote track")
					}
				}
			}
		}
	}()
}

// Close disconnects from the room and closes the event stream. Safe to
// call more than once.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		if a.room != nil {
			a.room.Disconnect()
		}
		close(a.events)
	})
}

// sendEvent never blocks the SDK callback goroutines; if the consumer
// fell behind the event is dropped with a log line.
func (a *Adapter) sendEvent(ev contractx.Event) {
	defer func() {
		// Events raced with Close; dropping them is fine at teardown.
		_ = recover()
	}()
	select {
	case a.events <- ev:
	default:
		log.Warn().Msg("event channel full, dropping event")
	}
}
