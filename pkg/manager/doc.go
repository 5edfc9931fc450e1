// Package manager binds traversal strategies to the scheduler and exposes
// the operations a skill manager offers to its clients: building tasks
// from skill sequences, running them in the print, execute, simulate or
// optimize modes, controlling them (preempt, pause, tick once) and
// observing their progress.
//
// A Manager owns one scheduler. Strategies are created per request, but
// only the strategy given when the tick loop starts is used until the loop
// stops; later requests only resume the task they name.
package manager
