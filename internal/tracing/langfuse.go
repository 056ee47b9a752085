// Package tracing wires optional Langfuse tracing into every eino model call.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set. Traces are named after the CLI command and
// tagged with release. The returned flush function must be called before
// process exit so buffered traces are sent. If Langfuse is not configured,
// the handler and flush are nil and ok is false.
func Setup(command, release string) (handler callbacks.Handler, flush func(), ok bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
		Name:      "ragdesk-" + command,
		Release:   release,
	})
	return handler, flush, true
}

// Enable calls Setup and, when tracing is configured, registers the handler
// globally. The returned flush is always safe to call.
func Enable(command, release string) (flush func(), ok bool) {
	handler, flush, ok := Setup(command, release)
	if !ok {
		return func() {}, false
	}
	callbacks.AppendGlobalHandlers(handler)
	return flush, true
}
