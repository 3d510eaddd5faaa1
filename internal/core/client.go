package core

// Client is one live connection as seen by the core layer. A user may hold
// several clients; each client may hold many room subscriptions.
type Client struct {
	ID       string
	UserID   int64
	Name     string
	Commands chan *Command
	Events   chan *Event
	Rooms    map[int64]struct{}

	// NotifyOnly marks connections that only receive notification events
	// (the per-user notification socket).
	NotifyOnly bool
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, userID int64, name string) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
		Rooms:    make(map[int64]struct{}),
	}
}
