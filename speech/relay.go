package speech

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"wanderplan/expenses"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Targets of a relayed capture. Amount results also carry the parsed number.
const (
	TargetText   = "text"
	TargetItem   = "item"
	TargetAmount = "amount"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// inbound is what the browser sends: either a control action or a
// recognizer event from the Web Speech API. A final, no-speech or error
// event completes the capture; "end" is optional.
type inbound struct {
	Action string `json:"action,omitempty"` // "start", "stop"
	Event  Kind   `json:"event,omitempty"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}

type outbound struct {
	Action string `json:"action"` // "listen", "halt", "result", "error"
	Target string `json:"target,omitempty"`
	Text   string `json:"text,omitempty"`
	Amount string `json:"amount,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Relay bridges a browser's speech recognition to a Capturer over a
// websocket, one connection per form field.
type Relay struct {
	// StopTimeout bounds how long a stop waits for the browser's result.
	StopTimeout time.Duration
}

func NewRelay() *Relay {
	return &Relay{StopTimeout: 15 * time.Second}
}

// Serve handles GET /api/speech/ws?target=text|item|amount.
func (rl *Relay) Serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	target := r.URL.Query().Get("target")
	switch target {
	case "":
		target = TargetText
	case TargetText, TargetItem, TargetAmount:
	default:
		http.Error(w, "unknown target", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("speech upgrade:", err)
		return
	}
	s := &session{conn: conn, target: target, timeout: rl.StopTimeout}
	s.rec = &socketRecognizer{send: s.write}
	s.capturer = NewCapturer(s.rec)
	s.run(r.Context())
}

type session struct {
	conn     *websocket.Conn
	target   string
	timeout  time.Duration
	rec      *socketRecognizer
	capturer *Capturer

	writeMu sync.Mutex

	mu     sync.Mutex
	active *Handle
}

func (s *session) write(v outbound) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) run(ctx context.Context) {
	defer func() {
		s.rec.closeStream()
		s.conn.Close()
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			log.Println("speech: invalid payload:", err)
			continue
		}

		switch {
		case in.Action == "start":
			s.start(ctx)
		case in.Action == "stop":
			s.mu.Lock()
			h := s.active
			s.mu.Unlock()
			if h != nil {
				go s.finish(h)
			}
		case in.Event != "":
			s.rec.push(Event{Kind: in.Event, Text: in.Text, Error: in.Error})
		}
	}
}

func (s *session) start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return
	}
	h, err := s.capturer.Start(ctx)
	if err != nil {
		s.write(outbound{Action: "error", Target: s.target, Error: err.Error()})
		return
	}
	s.active = h
	go func() {
		<-h.Done()
		s.finish(h)
	}()
}

// finish is reached from an explicit stop and from the recognition settling
// on its own. Only the first call delivers the result.
func (s *session) finish(h *Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := h.Stop(ctx)
	if errors.Is(err, ErrNotActive) {
		return
	}
	// the browser need not send "end"; free the stream for the next start
	s.rec.closeStream()

	s.mu.Lock()
	if s.active == h {
		s.active = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.write(outbound{Action: "error", Target: s.target, Error: err.Error()})
		return
	}
	out := outbound{Action: "result", Target: s.target, Text: res.Text}
	if s.target == TargetAmount {
		if amount, ok := expenses.ExtractAmount(res.Text); ok {
			out.Amount = amount.String()
		}
	}
	if err := s.write(out); err != nil {
		log.Println("speech write:", err)
	}
}

// socketRecognizer is a Recognizer whose events come from the browser.
type socketRecognizer struct {
	send func(outbound) error

	mu     sync.Mutex
	events chan Event
}

func (r *socketRecognizer) Begin(context.Context) (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events != nil {
		return nil, errors.New("speech: recognition already running")
	}
	if err := r.send(outbound{Action: "listen"}); err != nil {
		return nil, err
	}
	r.events = make(chan Event, 16)
	return r.events, nil
}

func (r *socketRecognizer) Halt() error {
	return r.send(outbound{Action: "halt"})
}

func (r *socketRecognizer) push(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		return
	}
	r.events <- ev
	if ev.Kind == KindEnd {
		close(r.events)
		r.events = nil
	}
}

func (r *socketRecognizer) closeStream() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events != nil {
		close(r.events)
		r.events = nil
	}
}
