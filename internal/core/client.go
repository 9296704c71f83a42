package core

// Client is one live connection as seen by the core layer.
// A user may hold several clients at once (multi-tab, multi-window).
// Username and ProjectID are set when the client joins a project; they are
// only touched from the client's own command pump.
type Client struct {
	ID        string
	Username  string
	ProjectID string
	Commands  chan *Command
	Events    chan *Event
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
	}
}

// send delivers an event without blocking. Delivery is best-effort: a slow
// consumer drops events and recovers from the next snapshot request.
func (c *Client) send(event *Event) {
	select {
	case c.Events <- event:
	default:
	}
}
