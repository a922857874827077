package server

import (
	"context"
	"encoding/json"

	"go.alis.build/alog"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/sheet"
)

// Hub fans sheet change events out to the websocket clients watching the
// affected company.
type Hub struct {
	// Registered clients per company.
	rooms map[string]map[*Client]bool

	// Events published by the sheet manager.
	broadcast chan sheet.Event

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}
}

// NewHub returns a Hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan sheet.Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Publish queues e for delivery. Events are dropped when the queue is full
// so a slow hub never blocks a write request.
func (h *Hub) Publish(e sheet.Event) {
	select {
	case h.broadcast <- e:
	default:
		alog.Warnf(context.Background(), "hub: queue full, dropped %s for %s", e.Type, e.Company)
	}
}

// Run owns the room map until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			return

		case client := <-h.register:
			if h.rooms[client.company] == nil {
				h.rooms[client.company] = make(map[*Client]bool)
			}
			h.rooms[client.company][client] = true
			alog.Debugf(ctx, "hub: client %s watching company %s", client.id, client.company)

		case client := <-h.unregister:
			if clients, ok := h.rooms[client.company]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.company)
					}
					alog.Debugf(ctx, "hub: client %s left company %s", client.id, client.company)
				}
			}

		case e := <-h.broadcast:
			msg, err := json.Marshal(e)
			if err != nil {
				alog.Errorf(ctx, "hub: encode event: %v", err)
				continue
			}
			for client := range h.rooms[e.Company] {
				select {
				case client.send <- msg:
				default:
					// Client is not draining; drop it.
					close(client.send)
					delete(h.rooms[e.Company], client)
				}
			}
			if len(h.rooms[e.Company]) == 0 {
				delete(h.rooms, e.Company)
			}
		}
	}
}
