package proxy

import (
	"context"
	"sync"

	"go.minekube.com/common/minecraft/component"
)

// ConnectionStatus is the status of a connection result.
type ConnectionStatus uint8

const (
	// SuccessConnectionStatus indicates that the player
	// was successfully connected to the server.
	SuccessConnectionStatus ConnectionStatus = iota
	// CanceledConnectionStatus indicates that the connection was canceled.
	CanceledConnectionStatus
	// ServerDisconnectedConnectionStatus indicates that the server
	// disconnected the player. A reason MAY be provided.
	ServerDisconnectedConnectionStatus
)

// Successful is true if the player was successfully connected to the server.
func (r ConnectionStatus) Successful() bool {
	return r == SuccessConnectionStatus
}

// Canceled is true if the connection was canceled.
func (r ConnectionStatus) Canceled() bool {
	return r == CanceledConnectionStatus
}

// ServerDisconnected is true if the server disconnected the player.
func (r ConnectionStatus) ServerDisconnected() bool {
	return r == ServerDisconnectedConnectionStatus
}

// ConnectionResult is the outcome of a backend connection request.
type ConnectionResult interface {
	Status() ConnectionStatus
	// Reason returns a reason for the failure to connect.
	// It is nil if not provided.
	Reason() component.Component
}

type connectionResult struct {
	status        ConnectionStatus
	reason        component.Component
	safe          bool // whether the player can be safely moved to another server
	attemptedConn RegisteredServer
}

func (r *connectionResult) Status() ConnectionStatus          { return r.status }
func (r *connectionResult) Reason() component.Component       { return r.reason }
func (r *connectionResult) AttemptedServer() RegisteredServer { return r.attemptedConn }

var _ ConnectionResult = (*connectionResult)(nil)

func plainResult(status ConnectionStatus, attemptedConn RegisteredServer) *connectionResult {
	return &connectionResult{status: status, safe: true, attemptedConn: attemptedConn}
}

func disconnectResult(reason component.Component, server RegisteredServer, safe bool) *connectionResult {
	return &connectionResult{
		status:        ServerDisconnectedConnectionStatus,
		reason:        reason,
		safe:          safe,
		attemptedConn: server,
	}
}

type connResponse struct {
	*connectionResult
	error
}

// connRequestCxt is the write-once handle a backend session handler resolves
// the outcome of a login attempt with. It is completed exactly once; later
// completions are no-ops. The orchestrating goroutine reads the response
// channel, additional continuations can be attached with onComplete.
type connRequestCxt struct {
	context.Context
	response chan<- *connResponse
	once     sync.Once

	mu            sync.Mutex // protects following fields
	completed     *connResponse
	continuations []func(*connResponse)
}

// result completes the request with either a connection result or an error.
// Only the first call has an effect.
func (c *connRequestCxt) result(result *connectionResult, err error) {
	c.once.Do(func() {
		resp := &connResponse{connectionResult: result, error: err}
		c.mu.Lock()
		c.completed = resp
		conts := c.continuations
		c.continuations = nil
		c.mu.Unlock()
		if c.response != nil {
			c.response <- resp
		}
		for _, fn := range conts {
			fn(resp)
		}
	})
}

// onComplete attaches a continuation run exactly once after completion,
// in attachment order. If already completed it runs immediately.
func (c *connRequestCxt) onComplete(fn func(*connResponse)) {
	c.mu.Lock()
	if resp := c.completed; resp != nil {
		c.mu.Unlock()
		fn(resp)
		return
	}
	c.continuations = append(c.continuations, fn)
	c.mu.Unlock()
}
