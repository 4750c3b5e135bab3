package irc

import (
	"context"
	"time"
)

// WaitJoined blocks until the server has echoed our own JOIN for the channel
// on the current connection. It gives up after timeout or when ctx is done.
func (c *Client) WaitJoined(ctx context.Context, login string, timeout time.Duration) bool {
	login = normalizeChannel(login)
	ch := make(chan struct{})

	c.mu.Lock()
	if _, ok := c.joined[login]; ok {
		c.mu.Unlock()
		return true
	}
	c.waiters[login] = append(c.waiters[login], ch)
	c.mu.Unlock()

	defer c.dropWaiter(login, ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Client) notifyJoined(login string) {
	c.mu.Lock()
	if _, ok := c.channels[login]; ok {
		c.joined[login] = struct{}{}
	}
	chans := c.waiters[login]
	delete(c.waiters, login)
	c.mu.Unlock()

	for _, ch := range chans {
		close(ch)
	}
}

func (c *Client) dropWaiter(login string, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chans := c.waiters[login]
	for i, w := range chans {
		if w == ch {
			c.waiters[login] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(c.waiters[login]) == 0 {
		delete(c.waiters, login)
	}
}
