package models

import (
	"strings"
	"time"
)

// User is an account that can sign in and receive anomaly notifications.
type User struct {
	ID                 int       `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email,omitempty"`
	PasswordHash       string    `json:"-"`
	NotificationEmails []string  `json:"notification_emails"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Recipients returns the primary email followed by the extra notification
// addresses, without duplicates.
func (u *User) Recipients() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, addr)
	}

	add(u.Email)
	for _, e := range u.NotificationEmails {
		add(e)
	}
	return out
}

// SplitEmailList parses a comma-joined address list, trimming blanks.
func SplitEmailList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinEmailList is the inverse of SplitEmailList.
func JoinEmailList(emails []string) string {
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return strings.Join(cleaned, ",")
}
