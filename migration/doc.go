// Package migration moves running process instances to new versions of their
// process definitions by rewriting the identifiers they hold.
package migration
