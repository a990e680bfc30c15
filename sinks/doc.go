// Package sinks provides ready-made batch handlers for dispatch sources.
//
// Every handler here is meant to be registered with Source.SetHandler and
// therefore runs on the source's serial queue, one batch at a time.
package sinks
