// Package delivery hands rendered messages to per-channel transports.
//
// A Provider holds one Transport per channel. Email goes through AWS SES v2,
// SMS through a Twilio-compatible HTTP API, WhatsApp through the Cloud API,
// and in-app messages are published to an SQS queue the host application
// consumes. Recipients are validated for the channel before any transport
// is called.
//
// In live mode a channel without a transport fails with
// ErrTransportNotConfigured. Sandbox mode is for local and staging
// environments: unconfigured channels log the message and report success
// without sending anything.
package delivery
