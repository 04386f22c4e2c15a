// Package queue defines message payloads exchanged over the message broker.
package queue

// UserRegisteredEvent is published when a new account is created.  It gives
// downstream consumers (audit trail, welcome mail, analytics) enough to act
// without querying the primary database.
type UserRegisteredEvent struct {
    UserID       uint64 `json:"user_id"`
    UserName     string `json:"user_name"`
    NickName     string `json:"nick_name"`
    Email        string `json:"email,omitempty"`
    Phone        string `json:"phone,omitempty"`
    RegisteredAt string `json:"registered_at"`
}

// UserLoginEvent is published on every successful login, forming the audit
// trail of session starts.
type UserLoginEvent struct {
    UserID    uint64 `json:"user_id"`
    UserName  string `json:"user_name"`
    ClientIP  string `json:"client_ip"`
    LoginAt   string `json:"login_at"`
    RequestID string `json:"request_id,omitempty"`
}
