// Package webhook serves HMAC-signed endpoints that dispatch command lines.
//
// Each endpoint is bound to one generic actor, so permissions and cooldowns
// apply to the bridge as a whole. Requests carry the command line in a JSON
// body signed with HMAC-SHA256 over the raw bytes:
//
//	POST /hooks/chat
//	X-Signature-256: sha256=<hex>
//
//	{"line": "report the lights are out", "locale": "de-DE"}
//
// Responses:
//
//   - 200 OK with the outcome and the messages sent to the actor
//   - 400 Bad Request for a malformed body or empty line
//   - 403 Forbidden for a missing or invalid signature, or a command the
//     endpoint does not allow (no details for signatures)
//   - 413 Payload Too Large when the body exceeds the endpoint limit
package webhook
