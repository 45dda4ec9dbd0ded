/*
Package server hosts the HTTP server and its middleware chain.

# Middleware Components

## Request ID (requestid.go)

RequestIDMiddleware reuses a well-formed incoming X-Request-ID or generates a
UUID, and adds it to:
  - The request context (accessible via GetRequestID)
  - The X-Request-ID response header

## CORS (cors.go)

CORSMiddleware answers OPTIONS with 200 and stamps permissive CORS headers on
every response. The IDE runs in a browser on another origin; identity comes
from the bearer token, not the origin.

## Logging (logging.go)

LoggingMiddleware provides structured request logging using slog:
  - Logs request start (method, path, remote_addr)
  - Logs request completion (status, duration)
  - Supports custom log fields via AddLogField/AddError

Streaming handlers rely on the wrapped writer implementing http.Flusher.

## Authentication (auth.go)

AuthMiddleware resolves the caller from an Authorization bearer token:
  - No token: the request continues anonymously
  - Invalid or expired token: 401
  - Valid token: the auth.Caller is stored in the request context

## Timeout (timeout.go)

TimeoutMiddleware bounds the request context. Streaming runs share the bound,
so it must exceed the longest expected agent run.

# Middleware Chain Order

 1. RequestIDMiddleware
 2. CORSMiddleware (before auth, so preflights never need a token)
 3. LoggingMiddleware
 4. AuthMiddleware
 5. TimeoutMiddleware
 6. Recoverer
 7. OTel instrumentation

# Example Usage

	srv := server.New(server.Options{Port: 8080, Authenticator: authn}, logger)
	handler.Routes(srv.Router)
	srv.Start(ctx)
*/
package server
