package bot

import "context"

// commandFunc answers one slash command; args is the text after the command name.
type commandFunc func(ctx context.Context, ownerID int64, args string) string

// commands maps slash command names to their handlers.
type commands map[string]commandFunc

func (c commands) register(handler commandFunc, names ...string) {
	for _, name := range names {
		c[name] = handler
	}
}

func (c commands) lookup(name string) (commandFunc, bool) {
	handler, ok := c[name]
	return handler, ok
}
