// Package speech turns podcast scripts into mp3 audio with Azure Speech.
//
// Go Pattern: like the other outbound clients this is a small struct around
// an *http.Client with an explicit timeout; the REST endpoint takes SSML and
// returns the audio bytes directly.
package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/metrics"
)

const (
	// DefaultVoice is the neural voice used for podcasts.
	DefaultVoice = "en-US-AriaNeural"
	// OutputFormat is 16kHz 32kbit/s mono mp3.
	OutputFormat = "audio-16khz-32kbitrate-mono-mp3"
)

// ErrNotConfigured is returned when no Azure Speech key or region was provided.
var ErrNotConfigured = errors.New("speech synthesis not configured; set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION")

// Synthesizer calls the Azure text-to-speech REST API.
type Synthesizer struct {
	key        string
	endpoint   string
	voice      string
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a synthesizer for region. An empty voice selects DefaultVoice.
func New(key, region, voice string, log *zap.Logger) *Synthesizer {
	if voice == "" {
		voice = DefaultVoice
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Synthesizer{
		key:        key,
		voice:      voice,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		log:        log.Named("speech"),
	}
	if region != "" {
		s.endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
	}
	return s
}

// WithEndpoint overrides the service URL.
func (s *Synthesizer) WithEndpoint(url string) *Synthesizer {
	s.endpoint = url
	return s
}

// Configured reports whether the synthesizer has credentials.
func (s *Synthesizer) Configured() bool {
	return s.key != "" && s.endpoint != ""
}

// Synthesize renders text as mp3 audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	ssml, err := buildSSML(s.voice, text)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", OutputFormat)
	req.Header.Set("User-Agent", "docsight-api")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	metrics.BackendRequestDuration.WithLabelValues("speech").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues("speech", "error").Inc()
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues("speech", "error").Inc()
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.BackendRequestsTotal.WithLabelValues("speech", "error").Inc()
		s.log.Warn("speech synthesis failed", zap.Int("status", resp.StatusCode), zap.ByteString("body", truncateBody(audio)))
		return nil, fmt.Errorf("speech service returned %d", resp.StatusCode)
	}
	metrics.BackendRequestsTotal.WithLabelValues("speech", "ok").Inc()
	s.log.Info("audio generated", zap.Int("bytes", len(audio)), zap.String("voice", s.voice))
	return audio, nil
}

func buildSSML(voice, text string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="en-US">`)
	b.WriteString(`<voice name="`)
	if err := xml.EscapeText(&b, []byte(voice)); err != nil {
		return nil, err
	}
	b.WriteString(`">`)
	if err := xml.EscapeText(&b, []byte(text)); err != nil {
		return nil, err
	}
	b.WriteString(`</voice></speak>`)
	return b.Bytes(), nil
}

func truncateBody(b []byte) []byte {
	if len(b) > 512 {
		return b[:512]
	}
	return b
}
