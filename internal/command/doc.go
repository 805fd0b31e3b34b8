// Package command holds the data model of the command pipeline: actors, command
// metadata, the node tree, per-invocation execution contexts, results, and the
// contracts that modifiers, interceptors and executors implement.
//
// Lifecycle:
//   - Nodes are built from Metadata at startup and attached into a Registry.
//   - Registry.Complete freezes the tree; later Attach calls fail with a
//     RegistrationError and the process should abort.
//   - Per invocation the dispatcher builds a Context, runs the gate checks and
//     modifier pipeline against it, invokes the Executor, and resolves exactly
//     one terminal Result.
package command
