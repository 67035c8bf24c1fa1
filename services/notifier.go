package services

import "github.com/edlight123/eventhaiti-payouts/notifications"

// AdminNotifier must return immediately. Implementations deliver on their own goroutines.
type AdminNotifier interface {
	NotifyAdmins(evt notifications.AdminEvent)
}

type noopNotifier struct{}

func (noopNotifier) NotifyAdmins(notifications.AdminEvent) {}

func notifierOrNoop(n AdminNotifier) AdminNotifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
