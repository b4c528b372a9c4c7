// Package api exposes the guest communication scheduler over HTTP: the
// automation registry, the scheduled message store, the business event
// inbound hook and the tick entry point for an external cron.
package api
