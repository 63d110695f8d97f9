package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/inference"
	"gocv.io/x/gocv"
)

// PredictionMessage is the websocket payload for one evaluated frame.
type PredictionMessage struct {
	Text       string  `json:"text"`
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence"`
	Recognized bool    `json:"recognized"`
	Ready      bool    `json:"ready"`
	Timestamp  int64   `json:"timestamp"`
}

// Hub fans the live runner's frames and predictions out to HTTP clients.
// Publishing never blocks: a slow subscriber only sees the latest message.
type Hub struct {
	mu        sync.Mutex
	frames    map[chan []byte]struct{}
	preds     map[chan []byte]struct{}
	lastFrame []byte
	lastPred  []byte
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		frames: make(map[chan []byte]struct{}),
		preds:  make(map[chan []byte]struct{}),
	}
}

// Publish encodes frame as JPEG and sends it with p to all subscribers.
// It matches inference.FrameFunc, so it can be used as a Runner's OnFrame.
func (h *Hub) Publish(frame *gocv.Mat, p inference.Prediction, ready bool) bool {
	if frame != nil && !frame.Empty() && h.hasFrameSubscribers() {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
		if err != nil {
			log.Printf("Error encoding frame: %v", err)
		} else {
			h.PublishFrame(buf.GetBytes())
			buf.Close()
		}
	}

	h.PublishPrediction(PredictionMessage{
		Text:       p.Text(),
		Label:      p.Label,
		Confidence: p.Confidence,
		Recognized: p.Recognized,
		Ready:      ready,
		Timestamp:  time.Now().UnixMilli(),
	})
	return true
}

// PublishFrame sends an encoded JPEG to stream subscribers.
func (h *Hub) PublishFrame(jpeg []byte) {
	data := append([]byte(nil), jpeg...)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastFrame = data
	for ch := range h.frames {
		offer(ch, data)
	}
}

// PublishPrediction sends msg to websocket subscribers.
func (h *Hub) PublishPrediction(msg PredictionMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error encoding prediction: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPred = data
	for ch := range h.preds {
		offer(ch, data)
	}
}

func (h *Hub) hasFrameSubscribers() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames) > 0
}

// subscribeFrames returns a channel primed with the latest frame.
func (h *Hub) subscribeFrames() (<-chan []byte, func()) {
	return h.subscribe(h.frames, func() []byte { return h.lastFrame })
}

// subscribePredictions returns a channel primed with the latest prediction.
func (h *Hub) subscribePredictions() (<-chan []byte, func()) {
	return h.subscribe(h.preds, func() []byte { return h.lastPred })
}

func (h *Hub) subscribe(set map[chan []byte]struct{}, last func() []byte) (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	h.mu.Lock()
	set[ch] = struct{}{}
	if data := last(); data != nil {
		ch <- data
	}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(set, ch)
		h.mu.Unlock()
	}
}

// offer replaces any unread message in ch with data.
func offer(ch chan []byte, data []byte) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- data:
	default:
	}
}
