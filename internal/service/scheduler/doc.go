// Package scheduler turns business events into scheduled messages and
// dispatches them when they come due.
//
// ScheduleForEvent matches active automations for a trigger, computes each
// message's send time from the trigger's anchor date, renders the templates
// against the event snapshot and stores a pending message. ProcessPending is
// the periodic tick: it claims due messages one at a time with a conditional
// status update, hands them to the delivery provider and records the outcome.
// A tick that loses the claim race skips the message.
package scheduler
