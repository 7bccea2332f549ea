// Package notifier provides [clubAuth.Notifier] implementations.
//
// [RabbitMQ] publishes each notification as a persistent JSON message to a
// queue consumed by the mail service. [Outbox] writes JSON lines to a
// writer and is meant for development servers, where the outbox stands in
// for a mailbox.
//
// Notifications carry codes and links. Implementations here never pass
// them to a logger.
package notifier
