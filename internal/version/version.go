// Package version holds the release version of record-linker.
package version

// Current is the release version, without a "v" prefix.
const Current = "0.1.0"
