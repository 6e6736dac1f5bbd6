// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP route handlers for the election API.

Handlers are grouped by resource, each a struct holding its database
handle and collaborators, constructed once at startup and registered on
the router. Identity comes from the X-User-ID header (the gateway in
front of this service authenticates it); privileged actions additionally
check roles against the role service and deny when it is unreachable.

State-changing handlers append to the audit ledger. Vote casting and the
draw do so inside their own transactions; end/claim/disburse append after
the fact and log, rather than fail, if the append goes wrong.
*/
package handlers
