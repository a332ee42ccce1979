// Package speech turns a recognizer event stream into one utterance per
// start/stop cycle.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotActive is returned by Stop once the handle has already been stopped.
var ErrNotActive = errors.New("语音识别未开始")

// UnsupportedError means the host has no speech recognition.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return "当前环境不支持语音识别"
	}
	return "当前环境不支持语音识别: " + e.Reason
}

// Recognizer failure other than silence.
type RecognitionError struct {
	Code string
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("语音识别失败: %s", e.Code)
}

type Kind string

const (
	KindInterim  Kind = "interim"
	KindFinal    Kind = "final"
	KindNoSpeech Kind = "no-speech"
	KindError    Kind = "error"
	KindEnd      Kind = "end"
)

// Event is one message from the recognizer.
type Event struct {
	Kind  Kind   `json:"event"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Recognizer is the host capability. Begin starts one recognition and
// returns its events; the channel is closed when recognition ends. Halt asks
// it to finish and must not discard a result that is already in flight.
type Recognizer interface {
	Begin(ctx context.Context) (<-chan Event, error)
	Halt() error
}

type Result struct {
	Text string `json:"text"`
}

type Capturer struct {
	rec Recognizer
}

func NewCapturer(rec Recognizer) *Capturer {
	return &Capturer{rec: rec}
}

// Start begins a single-shot recognition.
func (c *Capturer) Start(ctx context.Context) (*Handle, error) {
	if c == nil || c.rec == nil {
		return nil, &UnsupportedError{}
	}
	events, err := c.rec.Begin(ctx)
	if err != nil {
		return nil, err
	}
	h := &Handle{rec: c.rec, settled: make(chan struct{})}
	go h.drain(events)
	return h, nil
}

// Handle is one active recognition.
type Handle struct {
	rec     Recognizer
	settled chan struct{}
	once    sync.Once

	result Result
	err    error

	mu      sync.Mutex
	halted  bool
	stopped bool
}

// drain settles the handle on the first final, no-speech or error event.
// An end event or a closed stream settles it with empty text. Later events
// are read and dropped.
func (h *Handle) drain(events <-chan Event) {
	defer h.settle(Result{}, nil)
	for ev := range events {
		switch ev.Kind {
		case KindFinal:
			h.settle(Result{Text: strings.TrimSpace(ev.Text)}, nil)
		case KindNoSpeech, KindEnd:
			h.settle(Result{}, nil)
		case KindError:
			if ev.Error == string(KindNoSpeech) {
				h.settle(Result{}, nil)
			} else {
				h.settle(Result{}, &RecognitionError{Code: ev.Error})
			}
		}
	}
}

func (h *Handle) settle(res Result, err error) {
	h.once.Do(func() {
		h.result, h.err = res, err
		close(h.settled)
	})
}

// Done is closed once the recognition has a result.
func (h *Handle) Done() <-chan struct{} {
	return h.settled
}

// Stop asks the recognizer to finish, then waits for the in-flight result.
// ctx only bounds this wait; the recognition keeps running if it expires.
func (h *Handle) Stop(ctx context.Context) (Result, error) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return Result{}, ErrNotActive
	}
	halt := !h.halted
	h.halted = true
	h.mu.Unlock()

	if halt {
		select {
		case <-h.settled:
		default:
			if err := h.rec.Halt(); err != nil {
				return Result{}, err
			}
		}
	}

	select {
	case <-h.settled:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return Result{}, ErrNotActive
	}
	h.stopped = true
	return h.result, h.err
}
