// Package variable implements the variable scope of a process instance.
//
// A Scope holds the named variables of a single process instance. Variables
// may be declared with tags that mark them as read-only or required; the scope
// enforces those constraints and notifies a Listener before and after each
// change.
package variable
