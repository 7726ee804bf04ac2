package core

// Client is one participant connection as seen by the authority.
// PlayerID and Room are owned by the hub goroutine.
type Client struct {
	ID       string
	Name     string
	PlayerID string
	Room     string
	Commands chan *Command
	Events   chan *Event

	done chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name string) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:       id,
		Name:     name,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 32),
		done:     make(chan struct{}),
	}
}

// send delivers an event without blocking the hub. A dropped event is
// healed by the next full snapshot.
func (c *Client) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
