// Package tasks wires brokers and readers into runnable units: a Producer
// that appends a fixed number of entries, a ConsumerTask that runs a reader in
// the background, and a Pipeline that runs one producer against a group of
// consumers.
package tasks
