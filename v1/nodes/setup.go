package nodes

// Directory holds the ordered list of candidate RabbitMQ endpoints and a
// cursor marking the endpoint currently being tried. It is pure data plus
// rotation logic; it performs no I/O and has no failure modes beyond
// construction.
//
// Rotation contract: within one cycle (one full pass over the endpoint
// list) a failed endpoint is never retried before the remaining endpoints
// have been tried. Only ResetCycle returns the cursor to the front.
//
// A Directory is not safe for concurrent use. The connection controller
// owns it and mutates it from its worker goroutine only.
type Directory struct {
	endpoints []Endpoint
	cursor    int

	// tried records distinct hosts that were ever attempted. Diagnostics
	// only; rotation decisions never consult it.
	tried []string
}

// NewDirectory constructs a Directory over the given endpoints, preserving
// their order. Endpoint defaults (port, socket timeout, connection
// attempts) are applied here.
//
// Returns ErrNoEndpoints for an empty list and ErrMissingHost if any
// endpoint lacks a host.
func NewDirectory(endpoints []Endpoint) (*Directory, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	eps := make([]Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if e.Host == "" {
			return nil, ErrMissingHost
		}
		eps = append(eps, e.withDefaults())
	}

	return &Directory{endpoints: eps}, nil
}

// Current returns the endpoint the cursor points at.
func (d *Directory) Current() Endpoint {
	return d.endpoints[d.cursor]
}

// HasMoreInCycle reports whether untried endpoints remain in the current
// cycle, i.e. whether Advance may still be called before the cycle must be
// reset.
func (d *Directory) HasMoreInCycle() bool {
	return d.cursor+1 < len(d.endpoints)
}

// Advance moves the cursor to the next untried endpoint within the current
// cycle. Calling Advance past the end of the cycle is a programming error.
func (d *Directory) Advance() {
	if !d.HasMoreInCycle() {
		panic("nodes: Advance called with no endpoints left in cycle")
	}
	d.cursor++
}

// ResetCycle returns the cursor to the first endpoint and marks the cycle
// boundary. The next pass over the list is a new cycle.
func (d *Directory) ResetCycle() {
	d.cursor = 0
}

// Len returns the number of configured endpoints.
func (d *Directory) Len() int {
	return len(d.endpoints)
}

// MarkTried records the current endpoint's host in the tried log. The log
// is used for diagnostics in give-up error messages only.
func (d *Directory) MarkTried() {
	host := d.Current().Host
	for _, h := range d.tried {
		if h == host {
			return
		}
	}
	d.tried = append(d.tried, host)
}

// TriedHosts returns the distinct hosts that were attempted so far, in
// first-attempt order.
func (d *Directory) TriedHosts() []string {
	out := make([]string, len(d.tried))
	copy(out, d.tried)
	return out
}
