// Package runner provides the load test execution engine for crankdb.
//
// A run moves through fixed phases:
//   - Setup: [Workload.Setup] runs once, then one [Worker] is built per
//     worker goroutine
//   - Barrier: every worker waits until all are ready; the last to arrive
//     starts the bench clock and the duration timer
//   - Bench: workers run iterations until a stop condition holds
//   - Drain: in-flight iterations finish (bounded by the grace period)
//   - Teardown: workers are closed and [Workload.Teardown] runs once
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Concurrency: 10,
//		Iterations:  1000,
//		Duration:    time.Minute,
//		Warmup:      50,
//		Workload:    myWorkload,
//	})
//	res, err := r.Run(ctx)
//
// The run stops at whichever comes first of the iteration budget, the
// duration, or cancellation of ctx. Iteration failures are counted in
// [Result.Stats] and never abort the run.
//
// # Rate Limiting & Arrival Models
//
// RatePerSecond caps iteration starts globally, across all workers:
//   - [ArrivalModelUniform]: iterations at fixed intervals
//   - [ArrivalModelPoisson]: exponential inter-arrival times
//
// # Error Handling
//
// [Runner.Run] returns a [*ConfigError] for invalid options, a [*SetupError]
// when Setup or worker creation fails, and a [*TeardownError] (alongside a
// complete [Result]) when cleanup fails.
package runner
