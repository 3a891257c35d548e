package models

import (
	"errors"
	"testing"
)

func TestMailerRecipientEmail(t *testing.T) {
	addr := "vicar@example.org"
	blank := ""

	tests := []struct {
		name      string
		user      User
		lookupErr error
		wantEmail string
		wantOk    bool
	}{
		{"registered address", User{Email: &addr}, nil, addr, true},
		{"no address on file", User{Email: nil}, nil, "", false},
		{"blank address", User{Email: &blank}, nil, "", false},
		{"lookup failed", User{Email: &addr}, errors.New("record not found"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, ok := mailerRecipientEmail(&tt.user, tt.lookupErr)
			if ok != tt.wantOk {
				t.Fatalf("deliverable = %v, want %v", ok, tt.wantOk)
			}
			if email != tt.wantEmail {
				t.Fatalf("email = %q, want %q", email, tt.wantEmail)
			}
		})
	}
}
