package rules

import "testing"

func TestRequiresModeration(t *testing.T) {
	tests := []struct {
		name       string
		trust      int
		quota      int
		configured bool
		want       bool
	}{
		{name: "quota disabled", trust: 0, quota: 0, configured: true, want: false},
		{name: "no destination", trust: 0, quota: 2, configured: false, want: false},
		{name: "new user", trust: 0, quota: 2, configured: true, want: true},
		{name: "almost trusted", trust: 1, quota: 2, configured: true, want: true},
		{name: "trusted", trust: 2, quota: 2, configured: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiresModeration(tt.trust, tt.quota, tt.configured); got != tt.want {
				t.Fatalf("unexpected result: got %v want %v", got, tt.want)
			}
		})
	}
}
