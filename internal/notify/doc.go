// Package notify runs fire-and-forget notification delivery for the login
// and reset flows. Delivery failures are observed through hooks and never
// reach the operation that produced the notification.
package notify
