// Package message implements the scheduled message store: the rendered,
// recipient-bound units of work produced by the scheduler and their
// lifecycle.
//
// Every status change goes through a conditional transition (update where
// id = X and status = expected), so concurrent dispatch ticks, cancellations
// and engagement webhooks can never regress a message out of a terminal
// state or deliver it twice.
package message
