/*
Package operations runs deployment steps as versioned, reported units of work.

An Operation wraps exactly one side effect (send a transaction, append to a queue file) behind a
typed handler. A Sequence composes operations and is itself reported. Every execution produces a
Report holding the definition, input, output and error, which the Reporter keeps in memory or on
disk. When an operation or sequence is executed again with an input that already has a successful
report, the stored output is returned and nothing is executed.

State-changing operations are never retried by default. Read-only operations may opt in with
WithRetry.

	op := operations.NewOperation("create-version", semver.MustParse("1.0.0"),
		"Create a build in a plugin repo", handler)

	b := operations.NewBundle(ctx.Context, lggr, operations.NewMemoryReporter())
	report, err := operations.ExecuteOperation(b, op, deps, input)
*/
package operations
