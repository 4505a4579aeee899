package booking

import "testing"

func TestDecideConfirmation(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        bool
	}{
		{"custom offer marker", "Custom offer booking from Loft A", true},
		{"marker mid-sentence", "follow-up: custom offer booking, 4 hours", true},
		{"uppercase marker", "CUSTOM OFFER BOOKING", true},
		{"regular activity", "Birthday Party", false},
		{"empty description", "", false},
		{"partial marker", "custom booking offer", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecideConfirmation(tc.description); got != tc.want {
				t.Fatalf("DecideConfirmation(%q) = %v, want %v", tc.description, got, tc.want)
			}
		})
	}
}
