// Package http exposes the relay over HTTP and provides a client for it.
//
// The JSON shapes defined here are the wire contract shared by [Server] and
// [Client]. Domain types in the root package carry no wire tags.
package http

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sse"
)

// DefaultBasePath is the path prefix all routes are mounted under.
const DefaultBasePath = "/api"

// Error is a non-streaming error response.
type Error struct {
	Status  int
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("http %d: %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type sessionBody struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toSessionBody(s relay.Session) sessionBody {
	return sessionBody{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: sse.FormatTime(s.CreatedAt),
		UpdatedAt: sse.FormatTime(s.UpdatedAt),
	}
}

func (b sessionBody) session() (relay.Session, error) {
	created, err := time.Parse(time.RFC3339Nano, b.CreatedAt)
	if err != nil {
		return relay.Session{}, fmt.Errorf("session createdAt: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, b.UpdatedAt)
	if err != nil {
		return relay.Session{}, fmt.Errorf("session updatedAt: %w", err)
	}
	return relay.Session{ID: b.ID, Title: b.Title, CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}, nil
}

type sessionListBody struct {
	Sessions []sessionBody `json:"sessions"`
	Count    int           `json:"count"`
}

type messageBody struct {
	ID        int64  `json:"id"`
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func toMessageBody(m relay.Message) messageBody {
	return messageBody{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: sse.FormatTime(m.Timestamp),
	}
}

func (b messageBody) message() (relay.Message, error) {
	role, err := relay.ParseRole(b.Role)
	if err != nil {
		return relay.Message{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, b.Timestamp)
	if err != nil {
		return relay.Message{}, fmt.Errorf("message timestamp: %w", err)
	}
	return relay.Message{ID: b.ID, SessionID: b.SessionID, Role: role, Content: b.Content, Timestamp: ts.UTC()}, nil
}

type messageListBody struct {
	Messages []messageBody `json:"messages"`
	Count    int           `json:"count"`
}

type createSessionBody struct {
	Title string `json:"title,omitempty"`
}

type deleteBody struct {
	Success bool `json:"success"`
}

// Health is the GET /health response.
type Health struct {
	Status    string
	Timestamp time.Time
}

type healthBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ChatRequest is the POST /chat body. Numeric controls accept JSON numbers
// or numeric strings; Stop accepts a string or an array of strings.
type ChatRequest struct {
	Message      string `json:"message"`
	SessionID    string `json:"sessionId"`
	SystemPrompt string `json:"systemPrompt,omitempty"`

	Model            string         `json:"model,omitempty"`
	Temperature      *Float         `json:"temperature,omitempty"`
	MaxTokens        *Int           `json:"maxTokens,omitempty"`
	TopP             *Float         `json:"topP,omitempty"`
	FrequencyPenalty *Float         `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *Float         `json:"presencePenalty,omitempty"`
	Stop             StopList       `json:"stop,omitempty"`
	N                *Int           `json:"n,omitempty"`
	LogitBias        map[string]int `json:"logitBias,omitempty"`
	User             string         `json:"user,omitempty"`
	Seed             *Int           `json:"seed,omitempty"`
	Logprobs         *bool          `json:"logprobs,omitempty"`
	TopLogprobs      *Int           `json:"topLogprobs,omitempty"`
}

// NewChatRequest builds the wire request for a turn.
func NewChatRequest(turn relay.Turn) ChatRequest {
	o := turn.Options
	return ChatRequest{
		Message:          turn.Message,
		SessionID:        turn.SessionID,
		SystemPrompt:     turn.SystemPrompt,
		Model:            o.Model,
		Temperature:      floatPtr(o.Temperature),
		MaxTokens:        intPtr(o.MaxTokens),
		TopP:             floatPtr(o.TopP),
		FrequencyPenalty: floatPtr(o.FrequencyPenalty),
		PresencePenalty:  floatPtr(o.PresencePenalty),
		Stop:             StopList(o.Stop),
		N:                intPtr(o.N),
		LogitBias:        o.LogitBias,
		User:             o.User,
		Seed:             intPtr(o.Seed),
		Logprobs:         o.Logprobs,
		TopLogprobs:      intPtr(o.TopLogprobs),
	}
}

// Turn converts the request into a relay turn. Empty stop and logit bias
// are dropped.
func (r ChatRequest) Turn() relay.Turn {
	opts := relay.Options{
		Model:            r.Model,
		Temperature:      r.Temperature.value(),
		MaxTokens:        r.MaxTokens.value(),
		TopP:             r.TopP.value(),
		FrequencyPenalty: r.FrequencyPenalty.value(),
		PresencePenalty:  r.PresencePenalty.value(),
		N:                r.N.value(),
		User:             r.User,
		Seed:             r.Seed.value(),
		Logprobs:         r.Logprobs,
		TopLogprobs:      r.TopLogprobs.value(),
	}
	if len(r.Stop) > 0 {
		opts.Stop = []string(r.Stop)
	}
	if len(r.LogitBias) > 0 {
		opts.LogitBias = r.LogitBias
	}
	return relay.Turn{
		SessionID:    r.SessionID,
		Message:      r.Message,
		SystemPrompt: r.SystemPrompt,
		Options:      opts,
	}
}

// Float is a number that also decodes from a numeric string.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	s, err := numericText(b)
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*f = Float(v)
	return nil
}

func (f *Float) value() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// Int is an integer that also decodes from a numeric string. Fractions are
// truncated toward zero.
type Int int

func (n *Int) UnmarshalJSON(b []byte) error {
	s, err := numericText(b)
	if err != nil {
		return err
	}
	if v, err := strconv.Atoi(s); err == nil {
		*n = Int(v)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.Abs(v) >= math.MaxInt {
		return fmt.Errorf("invalid integer %s", b)
	}
	*n = Int(int(v))
	return nil
}

func (n *Int) value() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

// numericText returns the number literal or the trimmed contents of a JSON
// string.
func numericText(b []byte) (string, error) {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	return string(b), nil
}

// StopList is a list of stop sequences that also decodes from a single
// string.
type StopList []string

func (l *StopList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
			return nil
		}
		*l = StopList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("stop must be a string or an array of strings")
	}
	*l = list
	return nil
}

func floatPtr(v *float64) *Float {
	if v == nil {
		return nil
	}
	f := Float(*v)
	return &f
}

func intPtr(v *int) *Int {
	if v == nil {
		return nil
	}
	n := Int(*v)
	return &n
}
