package live

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Message is one payload fanned out to every subscriber of a question.
type Message struct {
	QuestionID string
	Data       []byte
}

type countRequest struct {
	questionID string
	reply      chan int
}

// Hub owns the subscriber set. All map access happens on the Run goroutine.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	count      chan countRequest
	done       chan struct{}
	log        logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		log:        log.WithField("component", "live"),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for _, conns := range h.clients {
			for c := range conns {
				close(c.send)
			}
		}
		h.clients = map[string]map[*Client]bool{}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			conns := h.clients[client.questionID]
			if conns == nil {
				conns = make(map[*Client]bool)
				h.clients[client.questionID] = conns
			}
			conns[client] = true

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			for c := range h.clients[msg.QuestionID] {
				select {
				case c.send <- msg.Data:
				default:
					// slow consumer
					h.log.WithField("question_id", msg.QuestionID).Warn("dropping slow live subscriber")
					h.remove(c)
				}
			}

		case req := <-h.count:
			req.reply <- len(h.clients[req.questionID])
		}
	}
}

func (h *Hub) remove(c *Client) {
	conns := h.clients[c.questionID]
	if conns == nil {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.clients, c.questionID)
	}
}

// Register adds c to the subscriber set. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast encodes v as JSON and queues it for the question's subscribers.
// It never blocks: when the queue is full the update is dropped.
func (h *Hub) Broadcast(questionID string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("failed to encode live update")
		return false
	}

	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.broadcast <- &Message{QuestionID: questionID, Data: data}:
		return true
	default:
		h.log.WithField("question_id", questionID).Warn("live broadcast queue full, dropping update")
		return false
	}
}

// Subscribers returns the number of live clients for a question.
func (h *Hub) Subscribers(questionID string) int {
	req := countRequest{questionID: questionID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}
