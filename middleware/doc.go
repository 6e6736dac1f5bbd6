// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP helpers shared by all handlers.

  - WithLogging: request/response logging via slog
  - JSONResponse / ErrorResponse: JSON encoding with consistent error shape
  - ParseJSONBody: request body decoding
  - UserID: caller identity from the X-User-ID header
  - CORS: cross-origin support with preflight handling
  - GetClientIP: real client IP behind proxies (X-Forwarded-For, X-Real-IP)

The client IP returned by GetClientIP is HMAC-hashed by auth.HashIP before
it is attached to audit events.
*/
package middleware
