package protocol

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Server-to-client message types. Binary WebSocket frames carry raw
// little-endian PCM-16 audio and have no type envelope.
const (
	TypeSessionStarted = "session_started"
	TypeConfigApplied  = "config_applied"
	TypeTranscription  = "transcription"
	TypeError          = "error"

	// TypeConfig is the single client-to-server control message, sent at
	// most once per session after session_started.
	TypeConfig = "config"
)

// Detection sensitivity bounds, mirrored by the backend.
const (
	MinAggressiveness = 0
	MaxAggressiveness = 3
	MinSpeechRatio    = 30
	MaxSpeechRatio    = 80

	DefaultAggressiveness = 1
	DefaultSpeechRatio    = 30
)

// ServerMessage is the control-plane envelope pushed by the backend. Fields
// beyond Type are populated per message type.
type ServerMessage struct {
	Type       string       `json:"type"`
	MeetingID  string       `json:"meeting_id,omitempty"`
	SampleRate int          `json:"sample_rate,omitempty"`
	Config     *ConfigEcho  `json:"config,omitempty"`
	Segments   []RawSegment `json:"segments,omitempty"`
	Offset     *float64     `json:"offset,omitempty"`
	Duration   *float64     `json:"duration,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// RawSegment is one recognized span as reported by the backend, before the
// assembler assigns ids and defaults.
type RawSegment struct {
	Start   float64  `json:"start"`
	End     *float64 `json:"end,omitempty"`
	Text    string   `json:"text"`
	Speaker *string  `json:"speaker,omitempty"`
}

// ConfigEcho is the backend's acknowledgment payload in config_applied.
type ConfigEcho struct {
	VadAggressiveness int     `json:"vad_aggressiveness"`
	MinSpeechRatio    float64 `json:"min_speech_ratio"`
}

// ConfigMessage is the client-to-server detection configuration, the only
// JSON message the client ever sends.
type ConfigMessage struct {
	Type              string  `json:"type"`
	VadAggressiveness int     `json:"vad_aggressiveness"`
	MinSpeechRatio    float64 `json:"min_speech_ratio"`
}

// DetectionConfig is the user-facing sensitivity configuration supplied at
// start time. SpeechRatio is a percentage; the wire format carries a ratio.
type DetectionConfig struct {
	Aggressiveness int `yaml:"aggressiveness" json:"aggressiveness"`
	SpeechRatio    int `yaml:"speech_ratio" json:"speech_ratio"`
}

// DefaultDetectionConfig returns the backend-recommended defaults.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Aggressiveness: DefaultAggressiveness,
		SpeechRatio:    DefaultSpeechRatio,
	}
}

// Validate checks the configuration against the protocol bounds.
func (c DetectionConfig) Validate() error {
	if c.Aggressiveness < MinAggressiveness || c.Aggressiveness > MaxAggressiveness {
		return fmt.Errorf("aggressiveness must be between %d and %d, got %d",
			MinAggressiveness, MaxAggressiveness, c.Aggressiveness)
	}
	if c.SpeechRatio < MinSpeechRatio || c.SpeechRatio > MaxSpeechRatio {
		return fmt.Errorf("speech_ratio must be between %d and %d, got %d",
			MinSpeechRatio, MaxSpeechRatio, c.SpeechRatio)
	}
	return nil
}

// Message converts the configuration to its wire form.
func (c DetectionConfig) Message() ConfigMessage {
	return ConfigMessage{
		Type:              TypeConfig,
		VadAggressiveness: c.Aggressiveness,
		MinSpeechRatio:    float64(c.SpeechRatio) / 100,
	}
}

// String returns a human-readable representation of the configuration.
func (c DetectionConfig) String() string {
	return fmt.Sprintf("DetectionConfig{Aggressiveness:%d, SpeechRatio:%d%%}", c.Aggressiveness, c.SpeechRatio)
}

// DecodeServerMessage parses and validates one control-plane message.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse server message: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server message: %w", err)
	}

	return &msg, nil
}

// Validate checks that the per-type required fields are present. Unknown
// types are accepted here; the session layer logs and ignores them so the
// backend can grow the protocol without breaking older clients.
func (m *ServerMessage) Validate() error {
	if m.Type == "" {
		return fmt.Errorf("missing message type")
	}

	switch m.Type {
	case TypeSessionStarted:
		if m.MeetingID == "" {
			return fmt.Errorf("session_started missing meeting_id")
		}
		if m.SampleRate <= 0 {
			return fmt.Errorf("session_started has invalid sample_rate %d", m.SampleRate)
		}
	case TypeError:
		if m.Message == "" {
			return fmt.Errorf("error message missing text")
		}
	}

	return nil
}

// IsKnownType reports whether the message type is part of this protocol
// version.
func (m *ServerMessage) IsKnownType() bool {
	switch m.Type {
	case TypeSessionStarted, TypeConfigApplied, TypeTranscription, TypeError:
		return true
	}
	return false
}

// String returns a human-readable summary of the message.
func (m *ServerMessage) String() string {
	switch m.Type {
	case TypeSessionStarted:
		return fmt.Sprintf("ServerMessage{Type:%s, MeetingID:%s, SampleRate:%d}", m.Type, m.MeetingID, m.SampleRate)
	case TypeTranscription:
		return fmt.Sprintf("ServerMessage{Type:%s, Segments:%d}", m.Type, len(m.Segments))
	case TypeError:
		return fmt.Sprintf("ServerMessage{Type:%s, Message:%q}", m.Type, m.Message)
	default:
		return fmt.Sprintf("ServerMessage{Type:%s}", m.Type)
	}
}

// StreamURL builds the per-session WebSocket URL. The meeting scope rides in
// the path; the negotiated and source sample rates ride as query parameters
// so the backend can size its decoder before the first audio frame arrives.
func StreamURL(base, meetingID string, sampleRate, sourceSampleRate int) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base URL cannot be empty")
	}
	if meetingID == "" {
		return "", fmt.Errorf("meeting id cannot be empty")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	u.Path = fmt.Sprintf("%s/meetings/%s/transcribe/realtime", u.Path, url.PathEscape(meetingID))

	q := u.Query()
	q.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	q.Set("source_sample_rate", fmt.Sprintf("%d", sourceSampleRate))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
