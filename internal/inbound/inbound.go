// Package inbound delivers raw report text from the outside world to a single
// Handler. Each transport is an adapter; ordering lives in the Dispatcher.
package inbound

import (
	"context"
	"strings"
	"time"
)

// Source labels where a payload came from.
type Source string

const (
	SourceAgent  Source = "agent"
	SourceWindow Source = "window"
	SourcePaste  Source = "paste"
	SourceSaved  Source = "salvo"
	SourceInbox  Source = "inbox"
)

// Payload is one complete raw report.
type Payload struct {
	Text       string
	Source     Source
	ReceivedAt time.Time
}

// Handler receives payloads. It is the only capability transports need.
type Handler interface {
	OnPayload(ctx context.Context, p Payload) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, p Payload) error

func (f HandlerFunc) OnPayload(ctx context.Context, p Payload) error { return f(ctx, p) }

// Runner is a transport that pushes payloads to h until ctx is done or the
// transport is exhausted.
type Runner interface {
	Run(ctx context.Context, h Handler) error
}

// DefaultNamespace prefixes message types.
const DefaultNamespace = "comtesta"

// Namespace builds message types such as "comtesta/response".
type Namespace string

func (n Namespace) base() string {
	if s := strings.TrimSpace(string(n)); s != "" {
		return s
	}
	return DefaultNamespace
}

// Response is the type of messages carrying a report.
func (n Namespace) Response() string { return n.base() + "/response" }

// Ready is the type announced once a listener is attached.
func (n Namespace) Ready() string { return n.base() + "/ready" }

// Message is the envelope shared by the broadcast and window channels.
type Message struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}
