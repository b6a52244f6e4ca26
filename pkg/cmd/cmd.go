// Package cmd is a transport independent command core. A command has a name,
// a description and a Run method; adapters (Discord, CLI) decide how it is
// registered and what they put into the invocation.
package cmd

import "context"

// Invocation is the input of one command run. Data carries the adapter's
// own context, e.g. the Discord interaction.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Middleware wraps a command.
type Middleware func(Command) Command

// Apply wraps c with mws; the last middleware ends up outermost.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}

// Unwrappable is implemented by wrappers so adapters can reach the command
// underneath, e.g. to type-assert its provider interfaces.
type Unwrappable interface {
	Command
	Unwrap() Command
}

type wrapped struct {
	inner Command
	run   func(ctx context.Context, inv *Invocation) error
}

func (w *wrapped) Name() string        { return w.inner.Name() }
func (w *wrapped) Description() string { return w.inner.Description() }
func (w *wrapped) Unwrap() Command     { return w.inner }

func (w *wrapped) Run(ctx context.Context, inv *Invocation) error {
	return w.run(ctx, inv)
}

// Wrap returns c with its Run replaced by run.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &wrapped{inner: c, run: run}
}

// Root unwraps c down to the innermost command.
func Root(c Command) Command {
	for {
		u, ok := c.(Unwrappable)
		if !ok {
			return c
		}
		c = u.Unwrap()
	}
}
