package relay

// MaxMembers is the room capacity; calls are strictly two-party.
const MaxMembers = 2

// Room holds the participants that joined one room identifier, in join order.
type Room struct {
	ID      string
	Members []*Client
}

func (r *Room) full() bool {
	return len(r.Members) >= MaxMembers
}

func (r *Room) has(c *Client) bool {
	for _, m := range r.Members {
		if m == c {
			return true
		}
	}
	return false
}

// others returns every member except c.
func (r *Room) others(c *Client) []*Client {
	out := make([]*Client, 0, len(r.Members))
	for _, m := range r.Members {
		if m != c {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) remove(c *Client) {
	for i, m := range r.Members {
		if m == c {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}
