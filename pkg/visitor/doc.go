/*
Package visitor implements the traversal strategies applied to task trees.

Every strategy satisfies ports.Strategy:

  - Print describes the tree without touching it.
  - Executor ticks the skill behaviors and composes child states.
  - ReversibleSimulator ticks like Executor against a journaling overlay
    and keeps the branch actually taken.
  - Optimizer rewrites an idle tree to lower its expected cost.

Executor and ReversibleSimulator share one tick engine. A preemption request
is checked before each node visit; once seen, every unfinished node of the
tree is marked Preempted and the pass stops without starting new work.
*/
package visitor
