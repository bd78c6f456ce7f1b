// Package sessionmgr implements the Session Manager: it sits between the
// HTTP hook layer and the Session Agent, turning each incoming hook event
// into a session row and a queued pending message, and ensuring exactly one
// Session Agent generator runs per session at a time.
package sessionmgr
