// Package events is the push channel between the export pipeline and its
// caller. Progress events are published as they are parsed from the encoder's
// diagnostic stream; subscribers receive them asynchronously so a slow
// consumer never stalls stream draining.
package events
