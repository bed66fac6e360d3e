// Package types holds the small shared value types of the data
// layer, the network address of a replicated instance and the
// two-variant index used by all read interfaces, in one place
// accessible to the rest of the system via a simple import.
package types
