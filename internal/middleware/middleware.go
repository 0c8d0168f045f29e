package middleware

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	CtxKeyPConfig    contextKey = "persistent_config"
	CtxKeyConfigPath contextKey = "config_path"
	CtxKeyCatalog    contextKey = "catalog"
)

type CommandFactory func() *cobra.Command

type MiddlewareFunc func(cmd *cobra.Command, args []string, next func(cmd *cobra.Command, args []string) error) error

type MiddlewareChain func(factory CommandFactory) CommandFactory

type contextKey string

// UseMiddlewareChain runs middlewares in order from the command's PreRunE,
// then the PreRunE the factory set, if any.
func UseMiddlewareChain(middlewares ...MiddlewareFunc) MiddlewareChain {
	mws := append([]MiddlewareFunc(nil), middlewares...)

	return func(factory CommandFactory) CommandFactory {
		return func() *cobra.Command {
			cmd := factory()

			next := cmd.PreRunE
			if next == nil {
				next = func(*cobra.Command, []string) error { return nil }
			}
			for i := len(mws) - 1; i >= 0; i-- {
				mw, inner := mws[i], next
				next = func(c *cobra.Command, a []string) error {
					return mw(c, a, inner)
				}
			}
			cmd.PreRunE = next
			return cmd
		}
	}
}

// Get reads a value a middleware stored in the command context.
func Get[T any](cmd *cobra.Command, key contextKey) (T, error) {
	var zero T

	ctx := cmd.Context()
	if ctx == nil {
		return zero, fmt.Errorf("command context is nil")
	}

	val := ctx.Value(key)
	if val == nil {
		return zero, fmt.Errorf("context value %q is nil, is the middleware wired?", key)
	}

	casted, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("context value %q has wrong type: %T", key, val)
	}
	return casted, nil
}
