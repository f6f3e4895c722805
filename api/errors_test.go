package api

import "testing"

func Test_extractMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"", ""},
		{"Insufficient funds", "Insufficient funds"},
		{"  Deposit limit exceeded \n", "Deposit limit exceeded"},
		{`"Invalid PIN"`, "Invalid PIN"},
		{`{"success":false,"message":"Invalid PIN"}`, "Invalid PIN"},
		{`{"error":"Unauthorized"}`, "Unauthorized"},
		{`{"message":"","error":"Bad symbol"}`, "Bad symbol"},
		{`{"status":500}`, ""},
		{`[1,2]`, ""},
	}
	for _, tt := range tests {
		if got := extractMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("extractMessage(%q) got %q, want %q", tt.body, got, tt.want)
		}
	}
}
