// Package process contains the in-memory model of process instances.
//
// Process instances and their node instances are stored in index-addressed
// tables within an Arena. A node instance refers to its owning process
// instance by index rather than by pointer.
package process
