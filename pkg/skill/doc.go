/*
Package skill holds the skill library: the templates that turn a skill type
into a tree node, and the built-in behaviors those templates can use.

Templates are registered in code or declared in YAML library files:

	skills:
	  - type: Move
	    behavior: wait
	    options: {ticks: 3}
	    params: {target: home}
	  - type: PickAndPlace
	    composition: sequential

A Library resolves types for the task builder and tracks which types this
agent advertises.
*/
package skill
