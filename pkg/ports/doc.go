/*
Package ports defines the boundaries of the skill manager.

These interfaces decouple the scheduler and the task manager from the skill
library, the traversal strategies, the world model and the transport.

# Key Interfaces

  - SkillResolver: resolves a skill type to its defaults and composition.
  - Strategy: a traversal applied to a task tree on every tick.
  - WorldModel: the key/value store skills act upon.
  - ProgressPublisher: forwards progress snapshots to remote observers.
  - DistributedLocker: serializes agent registration across replicas.
*/
package ports
