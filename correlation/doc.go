// Package correlation maps business keys to the IDs of the process instances
// they identify.
//
// A Correlation is encoded to a deterministic ID that does not depend on the
// order of its properties, allowing an instance to be found without knowing its
// internal ID.
package correlation
