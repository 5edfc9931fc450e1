/*
Package domain contains the core model of the skill manager.

It defines the behavior tree that describes a task and the values produced
while ticking it. The package is kept pure: no I/O, no scheduling and no
knowledge of how a tree is traversed.

# Key Entities

  - TaskTree: a registered task, a root Node owning the skill instances.
  - Node: a skill instance with a type, a unique label, bound Params and children.
  - Composition: how a node combines the RunState of its children.
  - RunState: the result of one traversal pass over a node or a tree.
  - Behavior: the hooks a skill implements, driven once per tick.
  - NodeProgress: one entry of the read-only progress snapshot.
*/
package domain
