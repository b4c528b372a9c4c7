// Package worker runs the background loops of the guest communication
// scheduler: the dispatcher that sends due messages every tick and the
// recovery loop that fails messages left in sending by a crashed process.
package worker
