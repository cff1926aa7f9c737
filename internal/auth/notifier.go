package auth

// Status is the login status reported to the host.
type Status string

const (
	StatusLoggedIn  Status = "logged_in"
	StatusLoggedOut Status = "logged_out"
)

// Notifier receives login events. Calls may come from any goroutine.
type Notifier interface {
	LoginStatusChanged(status Status)
	LoginSucceeded()
	LoginError(reason string)
	AccountResolved(accountID string)
}

// NotifierFuncs adapts optional funcs to Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	OnStatus    func(Status)
	OnSuccess   func()
	OnError     func(reason string)
	OnAccountID func(accountID string)
}

var _ Notifier = NotifierFuncs{}

func (n NotifierFuncs) LoginStatusChanged(status Status) {
	if n.OnStatus != nil {
		n.OnStatus(status)
	}
}

func (n NotifierFuncs) LoginSucceeded() {
	if n.OnSuccess != nil {
		n.OnSuccess()
	}
}

func (n NotifierFuncs) LoginError(reason string) {
	if n.OnError != nil {
		n.OnError(reason)
	}
}

func (n NotifierFuncs) AccountResolved(accountID string) {
	if n.OnAccountID != nil {
		n.OnAccountID(accountID)
	}
}
