package main

// dispatcher fans records out to connections via the registry. Both
// broadcast and unicast are best-effort: a client whose send buffer is
// full is evicted, and delivery to the remaining clients continues.
//
// Sends happen under the registry lock, where eviction candidates are
// only collected; the actual removal (and its session/broadcast side
// effects) runs after the lock is released.
type dispatcher struct {
	reg *registry
}

func newDispatcher(reg *registry) *dispatcher {
	return &dispatcher{reg: reg}
}

func (d *dispatcher) broadcast(record any, exclude *client) {
	var evicted []*client

	d.reg.mu.Lock()
	for c := range d.reg.clients {
		if c == exclude {
			continue
		}
		select {
		case c.send <- record:
		default:
			evicted = append(evicted, c)
		}
	}
	d.reg.mu.Unlock()

	for _, c := range evicted {
		d.reg.remove(c)
	}
}

func (d *dispatcher) unicast(c *client, record any) {
	delivered := true

	d.reg.mu.Lock()
	if _, ok := d.reg.clients[c]; ok {
		select {
		case c.send <- record:
		default:
			delivered = false
		}
	}
	d.reg.mu.Unlock()

	if !delivered {
		d.reg.remove(c)
	}
}
