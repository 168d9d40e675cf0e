package middleware

import tele "gopkg.in/telebot.v4"

// AdminChecker answers tier questions about a user id.
type AdminChecker interface {
	IsAdmin(id int64) bool
	IsSuperAdmin(id int64) bool
}

// AccessOptions defines how admin-only checks behave.
type AccessOptions struct {
	Checker  AdminChecker
	OnReject tele.HandlerFunc
}

// WithAdminCheck wraps a handler enforcing admin-only execution.
func WithAdminCheck(opts AccessOptions, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || opts.Checker == nil || !opts.Checker.IsAdmin(sender.ID) {
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
		return h(c)
	}
}

// WithSuperAdminCheck wraps a handler enforcing super-admin-only execution.
func WithSuperAdminCheck(opts AccessOptions, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || opts.Checker == nil || !opts.Checker.IsSuperAdmin(sender.ID) {
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
		return h(c)
	}
}
