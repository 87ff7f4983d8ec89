package domain

import "testing"

// FuzzParseIDs checks that parsing never panics, that both id kinds accept
// the same inputs, and that accepted ids survive a String round trip.
func FuzzParseIDs(f *testing.F) {
	for _, seed := range []string{
		"",
		"550e8400-e29b-41d4-a716-446655440000",
		"00000000-0000-0000-0000-000000000000",
		"{550e8400-e29b-41d4-a716-446655440000}",
		"urn:uuid:550e8400-e29b-41d4-a716-446655440000",
		"'; DROP TABLE receipts;--",
		"\x00\x01\x02",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		userID, userErr := ParseUserID(input)
		_, receiptErr := ParseReceiptID(input)
		if (userErr == nil) != (receiptErr == nil) {
			t.Fatalf("user and receipt ids disagree on %q", input)
		}
		if userErr != nil {
			return
		}
		if userID.IsNil() {
			t.Fatal("nil uuid accepted")
		}
		again, err := ParseUserID(userID.String())
		if err != nil || again != userID {
			t.Fatalf("round trip of %s failed: %v", userID, err)
		}
	})
}
