// Package memory provides in-process implementations of the service
// repositories. They back unit tests and the server's sandbox mode; state is
// lost on restart.
package memory
