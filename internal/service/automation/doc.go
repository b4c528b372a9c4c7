// Package automation implements the automation registry: the rules that map a
// business trigger to a message template, timing offset and channel.
//
// The service layer validates rules before they are persisted (trigger,
// channel, templates, time of day and property scope ownership) and exposes
// the hot-path FindActive query used by the scheduler at event time. It
// depends on repository interfaces defined in this package and should never
// import from api/.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package automation
