// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package draw orchestrates lottery draws.

The Coordinator runs one draw as a single database transaction covering
precondition checks, winner selection, prize allocation, wallet credits,
and the audit event. Any failure rolls the whole attempt back, so an
election is always either fully drawn or untouched and retryable. At most
one draw per election is enforced by the unique index on the draw table;
a Redis lock in front of it keeps concurrent attempts from doing the
selection work twice.

Manual draws require the admin or election_manager role and may run
before the election's end time; that override is recorded in the draw
metadata and audit payload. Automatic draws come from the Scheduler,
which periodically sweeps for ended, undrawn elections, and never draw
early.

Winner notification happens after commit, in a goroutine, and is allowed
to fail.
*/
package draw
