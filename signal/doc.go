// Package signal routes events to the process instances that are waiting for
// them, whether or not those instances are currently loaded in memory.
package signal
