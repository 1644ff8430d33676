package ws

// SessionObserver is told when sessions open and close. *metrics.Manager
// satisfies it.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

type nopObserver struct{}

func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed() {}
