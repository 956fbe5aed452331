package socket

import (
	"sync"

	"github.com/pkg/errors"
)

// PortTable allocates ephemeral local ports for outbound connections that
// request a specific bind address but leave the port to us — a knob the
// original http_connection doesn't expose (it always binds with port 0
// and lets the OS choose) but which every real client eventually wants
// once it needs the local port to be predictable for firewall rules.
type PortTable struct {
	table map[uint16]struct{}
	mu    sync.Mutex

	ephemeral [2]uint16 // [start, end)
	rand      func() uint16
	maxTry    uint
}

type EphemeralPortOptions struct {
	Range  [2]uint16
	Rand   func() uint16
	MaxTry uint
}

func (o EphemeralPortOptions) validate() error {
	if o.Range[0] > o.Range[1] {
		return errors.Errorf("end(%d) must be greater or equal than start(%d)", o.Range[1], o.Range[0])
	}
	if o.Rand == nil {
		return errors.New("rand function must be provided")
	}
	return nil
}

func NewPortTable(opts EphemeralPortOptions) *PortTable {
	if err := opts.validate(); err != nil {
		panic(err)
	}

	return &PortTable{
		table:     make(map[uint16]struct{}),
		ephemeral: opts.Range,
		rand:      opts.Rand,
		maxTry:    opts.MaxTry,
	}
}

// Occupy reserves port, or picks and reserves an unused ephemeral port
// when port is 0, retrying up to maxTry times on collision. release must
// be called once the port is no longer needed.
func (p *PortTable) Occupy(port uint16) (ok bool, result uint16, release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := []uint16{port}
	if port == 0 {
		candidates = p.candidateEphemerals()
	}

	for _, candidate := range candidates {
		if candidate == 0 || p.reservedLocked(candidate) {
			continue
		}
		p.table[candidate] = struct{}{}
		return true, candidate, p.releaser(candidate)
	}

	return false, 0, nil
}

func (p *PortTable) reservedLocked(port uint16) bool {
	_, found := p.table[port]
	return found
}

func (p *PortTable) releaser(port uint16) func() {
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.table, port)
	}
}

// candidateEphemerals draws up to maxTry random ports from [start, end).
func (p *PortTable) candidateEphemerals() []uint16 {
	gap := p.ephemeral[1] - p.ephemeral[0]
	if gap == 0 {
		return nil // empty range: nothing to draw from
	}
	ports := make([]uint16, p.maxTry)
	for i := range ports {
		ports[i] = p.ephemeral[0] + (p.rand() % gap)
	}
	return ports
}
