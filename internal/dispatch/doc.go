// Package dispatch resolves a command line against the command tree and runs
// it to exactly one terminal Result.
//
// Resolution walks child aliases depth-first. When a child rejects its
// arguments with an *args.ParseError the parent retries the same tokens as
// its own parameters, up to the configured fallback depth; parse errors from
// every level are reported together if no level accepts the tokens. Any other
// failure stops resolution immediately.
//
// Once a node is chosen the pipeline is:
//   - source check (player-only, console-only, ...)
//   - context construction
//   - base permission check
//   - parameter parsing
//   - modifier requirements (first veto wins)
//   - usage for nodes without an executor
//   - executor PreExecute, then modifier PreExecute
//   - executor body, inline or on a background worker
//
// A Continue result from any stage leaves the invocation pending; it is
// finished later through the command.Continuation the context carries. The
// finish step runs completion hooks on Success, fail-actions and the failure
// message on Fail, and then every interceptor's post hook, once.
//
// Process must be called on the scheduler's foreground loop.
package dispatch
