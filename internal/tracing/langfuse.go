// Package tracing wires optional Langfuse tracing into chat model calls.
// Handlers are passed to provider.NewStreamer rather than registered
// globally, so only answer generation is traced.
package tracing

import (
	"fmt"
	"net/url"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is the Langfuse endpoint used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Config holds the Langfuse connection settings.
type Config struct {
	Host      string
	PublicKey string
	SecretKey string
	// Name is the trace name shown in Langfuse.
	Name string
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = DefaultHost
	}
	return Config{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
		Name:      "docchat",
	}
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// New builds the Langfuse handler and its flush function. The flush
// function must be called before exit so buffered traces are sent.
func New(cfg Config) (callbacks.Handler, func(), error) {
	if !cfg.Enabled() {
		return nil, nil, fmt.Errorf("tracing: LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY are required")
	}
	u, err := url.Parse(cfg.Host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, nil, fmt.Errorf("tracing: invalid LANGFUSE_HOST %q", cfg.Host)
	}
	if cfg.Name == "" {
		cfg.Name = "docchat"
	}

	handler, flush := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      cfg.Name,
	})
	return handler, flush, nil
}

// Setup builds the handler from the environment. ok is false, with nil
// handler and flush, when tracing is not configured or misconfigured.
func Setup() (handler callbacks.Handler, flush func(), ok bool) {
	cfg := ConfigFromEnv()
	if !cfg.Enabled() {
		return nil, nil, false
	}
	handler, flush, err := New(cfg)
	if err != nil {
		return nil, nil, false
	}
	return handler, flush, true
}
