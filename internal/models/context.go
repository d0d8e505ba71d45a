package models

import "context"

type commandContextKey struct{}

// CommandContext carries caller metadata for a single lock or queue command so it can be
// attached to logs without widening the ledger's method signatures.
type CommandContext struct {
	RequestId string // correlates the submit, confirmation and refresh of one command
	Source    string // "api", "cli" or another entry point
}

// WithCommandContext attaches command metadata to a context.
func WithCommandContext(ctx context.Context, cc *CommandContext) context.Context {
	return context.WithValue(ctx, commandContextKey{}, cc)
}

// GetCommandContext retrieves command metadata from context, or nil if absent.
func GetCommandContext(ctx context.Context) *CommandContext {
	cc, _ := ctx.Value(commandContextKey{}).(*CommandContext)
	return cc
}
