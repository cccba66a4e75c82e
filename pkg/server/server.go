package server

import (
	"net/http"

	"github.com/sirupsen/logrus"

	internalserver "github.com/SmitUplenchwar2687/keyval/internal/server"
	"github.com/SmitUplenchwar2687/keyval/pkg/clock"
	"github.com/SmitUplenchwar2687/keyval/pkg/storage"
)

// Server exposes a Store over HTTP.
type Server = internalserver.Server

// DefaultMaxValueSize bounds PUT request bodies.
const DefaultMaxValueSize = internalserver.DefaultMaxValueSize

// New creates a new keyval server over s.
func New(addr string, s storage.Store, clk clock.Clock, log logrus.FieldLogger) *Server {
	return internalserver.New(addr, s, clk, log)
}

// LoggingMiddleware logs each request at debug level.
func LoggingMiddleware(next http.Handler, log logrus.FieldLogger, clk clock.Clock) http.Handler {
	return internalserver.LoggingMiddleware(next, log, clk)
}

// StatusFor maps a store error to an HTTP status code.
func StatusFor(err error) int {
	return internalserver.StatusFor(err)
}
