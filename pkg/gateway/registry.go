package gateway

// registry tracks the connected clients by player id. It is owned by the
// hub's run loop and never accessed from other goroutines.
type registry struct {
	clients map[string]*Client
}

func newRegistry() *registry {
	return &registry{clients: make(map[string]*Client)}
}

func (r *registry) add(c *Client) {
	r.clients[c.PlayerID] = c
}

// remove drops the client, but only if the registered connection is the
// same one, so a reconnect is not clobbered by the old connection's
// teardown.
func (r *registry) remove(c *Client) bool {
	current, ok := r.clients[c.PlayerID]
	if !ok || current != c {
		return false
	}
	delete(r.clients, c.PlayerID)
	return true
}

func (r *registry) get(playerID string) (*Client, bool) {
	c, ok := r.clients[playerID]
	return c, ok
}
