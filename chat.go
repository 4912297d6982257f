package venice

import (
	"context"
	"slices"
)

// Chat keeps a transcript across exchanges for the lifetime of a session. It
// is not safe for concurrent use.
type Chat struct {
	driver  *Driver
	history []Message
}

// NewChat starts a session, seeded with a system message when systemPrompt is
// not empty.
func NewChat(driver *Driver, systemPrompt string) *Chat {
	c := &Chat{driver: driver}
	if systemPrompt != "" {
		c.history = append(c.history, NewTextMessage(RoleSystem, systemPrompt))
	}
	return c
}

// Send runs one exchange for prompt. The transcript is only extended when the
// exchange completes.
func (c *Chat) Send(ctx context.Context, prompt string, fn StreamFunc) (*Exchange, error) {
	messages := append(slices.Clone(c.history), NewTextMessage(RoleUser, prompt))

	ex, err := c.driver.Run(ctx, messages, fn)
	if err != nil {
		return ex, err
	}

	c.history = ex.Messages
	return ex, nil
}

// SetDriver switches the driver used by later exchanges. The transcript is
// kept.
func (c *Chat) SetDriver(driver *Driver) {
	c.driver = driver
}

// History returns a copy of the transcript.
func (c *Chat) History() []Message {
	return slices.Clone(c.history)
}
