// Package modifier holds the process-wide policies commands declare:
// cooldown, warmup and cost. Each is a single shared value; everything that
// varies per invocation is read from and written to the command.Context.
package modifier
