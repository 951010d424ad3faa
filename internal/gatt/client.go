package gatt

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultMTU is the minimum LE ATT_MTU.
	DefaultMTU = 23

	// MaxAttributeValueLength caps long reads.
	MaxAttributeValueLength = 512
)

// ReadFunc receives the outcome of a read. On failure ecode carries the ATT
// error code and value is nil.
type ReadFunc func(success bool, ecode ATTError, value []byte)

// Transport carries read requests to the remote device. Responses are fed
// back through Client.Deliver using the same request ID.
type Transport interface {
	SendRead(id uint32, handle uint16) error
	SendReadBlob(id uint32, handle, offset uint16) error
	MTU() int
}

type request struct {
	owner  *ClientHandle
	handle uint16
	long   bool
	offset uint16
	buf    []byte
	issued time.Time
	done   ReadFunc
}

// Client issues attribute reads on behalf of one or more holders.
// Safe for concurrent use; ReadFuncs run without internal locks held.
type Client struct {
	mu        sync.Mutex
	transport Transport
	ready     bool
	closed    bool
	nextID    uint32
	pending   map[uint32]*request
	refs      int
	now       func() time.Time
}

// NewClient creates a client that sends requests through t.
func NewClient(t Transport) *Client {
	return &Client{
		transport: t,
		pending:   make(map[uint32]*request),
		now:       time.Now,
	}
}

// Acquire returns a new counted reference to the client.
func (c *Client) Acquire() *ClientHandle {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
	return &ClientHandle{client: c}
}

// Refs returns the number of unreleased handles.
func (c *Client) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// SetReady marks whether discovery has completed.
func (c *Client) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// Ready reports whether discovery has completed and the client is open.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready && !c.closed
}

// Pending returns the number of in-flight requests.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// PendingIDs returns the in-flight request IDs in ascending order.
func (c *Client) PendingIDs() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint32, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Client) mtu() int {
	if c.transport == nil {
		return DefaultMTU
	}
	if m := c.transport.MTU(); m >= DefaultMTU {
		return m
	}
	return DefaultMTU
}

// send registers req under a fresh ID and hands it to the transport.
// Must be called without c.mu held.
func (c *Client) send(req *request) bool {
	c.mu.Lock()
	if c.closed || req.owner.released {
		c.mu.Unlock()
		return false
	}
	c.nextID++
	if c.nextID == 0 {
		c.nextID = 1
	}
	id := c.nextID
	req.issued = c.now()
	c.pending[id] = req
	c.mu.Unlock()

	var err error
	if req.long && (req.offset > 0 || len(req.buf) > 0) {
		err = c.transport.SendReadBlob(id, req.handle, req.offset+uint16(len(req.buf)))
	} else {
		err = c.transport.SendRead(id, req.handle)
	}
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return false
	}
	return true
}

// Deliver completes request id with the given outcome. A zero ecode means
// success. Returns ErrUnknownRequest if id is not pending, which includes
// requests cancelled by releasing their handle.
func (c *Client) Deliver(id uint32, ecode ATTError, value []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	req, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownRequest, id)
	}
	delete(c.pending, id)
	mtu := c.mtu()
	c.mu.Unlock()

	if !req.long {
		if ecode != ErrCodeNone {
			req.done(false, ecode, nil)
			return nil
		}
		req.done(true, ErrCodeNone, value)
		return nil
	}

	if ecode != ErrCodeNone {
		// After the first chunk these codes mark the end of the value.
		if len(req.buf) > 0 && (ecode == ErrCodeAttributeNotLong || ecode == ErrCodeInvalidOffset) {
			req.done(true, ErrCodeNone, req.buf)
			return nil
		}
		req.done(false, ecode, nil)
		return nil
	}

	req.buf = append(req.buf, value...)
	if len(req.buf) >= MaxAttributeValueLength {
		req.done(true, ErrCodeNone, req.buf[:MaxAttributeValueLength])
		return nil
	}
	if len(value) < mtu-1 {
		req.done(true, ErrCodeNone, req.buf)
		return nil
	}
	if !c.send(req) {
		c.mu.Lock()
		cancelled := req.owner.released
		c.mu.Unlock()
		if !cancelled {
			req.done(false, ErrCodeUnlikely, nil)
		}
	}
	return nil
}

// Expire fails every request older than maxAge with ErrCodeUnlikely and
// returns how many were expired.
func (c *Client) Expire(maxAge time.Duration) int {
	c.mu.Lock()
	cutoff := c.now().Add(-maxAge)
	var expired []*request
	for id, req := range c.pending {
		if req.issued.Before(cutoff) {
			expired = append(expired, req)
			delete(c.pending, id)
		}
	}
	c.mu.Unlock()

	for _, req := range expired {
		req.done(false, ErrCodeUnlikely, nil)
	}
	return len(expired)
}

// Close fails all in-flight requests and rejects further reads.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.ready = false
	ids := make([]uint32, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	failed := make([]*request, 0, len(ids))
	for _, id := range ids {
		failed = append(failed, c.pending[id])
	}
	c.pending = make(map[uint32]*request)
	c.mu.Unlock()

	for _, req := range failed {
		req.done(false, ErrCodeUnlikely, nil)
	}
}

// ClientHandle is one holder's reference to a Client. Reads issued through
// it are cancelled when it is released.
type ClientHandle struct {
	client   *Client
	released bool
}

// Client returns the underlying client.
func (h *ClientHandle) Client() *Client {
	return h.client
}

// Ready reports whether the underlying client has completed discovery.
func (h *ClientHandle) Ready() bool {
	return h.client.Ready()
}

// ReadValue issues a single Read request. Returns false if the request
// could not be queued, in which case fn is never called.
func (h *ClientHandle) ReadValue(handle uint16, fn ReadFunc) bool {
	if fn == nil || handle == 0 {
		return false
	}
	return h.client.send(&request{owner: h, handle: handle, done: fn})
}

// ReadLongValue reads a value of arbitrary length starting at offset,
// continuing with Read Blob requests while each response fills the MTU.
// Returns false if the request could not be queued.
func (h *ClientHandle) ReadLongValue(handle, offset uint16, fn ReadFunc) bool {
	if fn == nil || handle == 0 {
		return false
	}
	return h.client.send(&request{owner: h, handle: handle, long: true, offset: offset, done: fn})
}

// Release drops the reference and cancels every in-flight read issued
// through it. Subsequent calls are no-ops.
func (h *ClientHandle) Release() {
	c := h.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	for id, req := range c.pending {
		if req.owner == h {
			delete(c.pending, id)
		}
	}
	c.refs--
}

// Released reports whether Release has been called.
func (h *ClientHandle) Released() bool {
	h.client.mu.Lock()
	defer h.client.mu.Unlock()
	return h.released
}
