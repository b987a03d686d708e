// Package send wires a validated user config to a Mailer and sends one
// message with it.
package send
