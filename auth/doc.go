// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identifier generation and privacy hashing.

Authentication token issuance lives in the platform's identity service, not
here; requests arrive with an X-User-ID header and roles come from the role
service. This package keeps the two primitives the server itself needs:

	id, err := auth.GenerateID(16)       // random hex entity IDs
	hash := auth.HashIP(clientIP, salt)  // HMAC-salted IP for the audit log

Raw client IPs are never persisted; the audit trail stores only the salted
hash, which is stable enough for deduplication and abuse analysis.
*/
package auth
