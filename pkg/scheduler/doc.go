/*
Package scheduler runs task trees at a fixed cadence.

A Scheduler owns the registry of tasks and a single tick loop. Every cycle
the loop walks the registered ids in ascending order, delivers pending
preemptions, honors pause counters, traverses each remaining task with the
bound strategy, publishes a print snapshot and drops the tasks that reached
a terminal state. The loop exits when the registry is empty; the next Start
spins up a fresh one.

Only one strategy is bound at a time: starting a task while a loop runs
only resumes it and keeps the strategy already bound.

A preemption is addressed to one task. The loop hands it to the strategy
at that task's next visit as an already cancelled context, so the shared
strategy never carries a stop request over to another task.

Preempt waits for the loop to honor the request for a grace period. When
it does not, the loop context is cancelled, the loop is detached and the
task is dropped. A stuck traversal is never killed; it returns when its
behavior observes the cancelled context and its results are discarded.
*/
package scheduler
