package utils

import (
	"testing"
	"time"

	"shoonya-screener/internal/calendar"
)

func TestExpirySuffix(t *testing.T) {
	d := time.Date(2025, time.August, 28, 12, 0, 0, 0, calendar.ISTLocation)
	if got := ExpirySuffix(d); got != "AUG-2025" {
		t.Errorf("ExpirySuffix = %q, want AUG-2025", got)
	}
}

func TestSortExpiries(t *testing.T) {
	expiries := []string{"25-SEP-2025", "28-AUG-2025", "30-OCT-2025", "garbage"}
	SortExpiries(expiries)

	want := []string{"28-AUG-2025", "25-SEP-2025", "30-OCT-2025", "garbage"}
	for i := range want {
		if expiries[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", expiries, want)
		}
	}
}
