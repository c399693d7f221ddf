package schedule

import (
	"testing"
	"time"
)

func TestBeginningOfDay(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid day",
			in:   time.Date(2020, 1, 15, 13, 37, 42, 999, time.UTC),
			want: time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "already truncated",
			in:   time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
			want: time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "just before midnight",
			in:   time.Date(2020, 1, 15, 23, 59, 59, 999999999, time.UTC),
			want: time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BeginningOfDay(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("BeginningOfDay() = %v, want %v", got, tt.want)
			}
			// idempotent
			if again := BeginningOfDay(got); !again.Equal(got) {
				t.Errorf("BeginningOfDay() not idempotent: %v != %v", again, got)
			}
		})
	}
}

func TestBinForUser_partitionsUserIDSpace(t *testing.T) {
	for _, numBins := range []int{1, 2, 24, 37} {
		claims := make(map[int]int) // user id -> claiming bin count
		for userID := 0; userID < 500; userID++ {
			for bin := 0; bin < numBins; bin++ {
				if BinForUser(userID, numBins) == bin {
					claims[userID]++
				}
			}
		}
		for userID := 0; userID < 500; userID++ {
			if claims[userID] != 1 {
				t.Fatalf("num_bins=%d: user %d claimed by %d bins, want exactly 1", numBins, userID, claims[userID])
			}
		}
	}
}

func TestBinForUser_stable(t *testing.T) {
	for userID := 0; userID < 100; userID++ {
		first := BinForUser(userID, DefaultNumBins)
		if first < 0 || first >= DefaultNumBins {
			t.Fatalf("BinForUser(%d) = %d, out of range [0, %d)", userID, first, DefaultNumBins)
		}
		for i := 0; i < 5; i++ {
			if got := BinForUser(userID, DefaultNumBins); got != first {
				t.Fatalf("BinForUser(%d) not stable: %d then %d", userID, first, got)
			}
		}
	}
}
