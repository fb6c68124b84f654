package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"piggybank/models"
)

func TestFormatID(t *testing.T) {
	tests := []struct {
		prefix string
		n      int64
		want   string
	}{
		{"PIG", 1, "PIG001"},
		{"TRX", 14, "TRX014"},
		{"PIG", 999, "PIG999"},
		{"PIG", 1000, "PIG1000"},
	}
	for _, tt := range tests {
		if got := formatID(tt.prefix, tt.n); got != tt.want {
			t.Errorf("formatID(%q, %d) = %q, want %q", tt.prefix, tt.n, got, tt.want)
		}
	}
}

func TestIDSuffix(t *testing.T) {
	tests := []struct {
		id   string
		want int64
	}{
		{"PIG003", 3},
		{"PIG999", 999},
		{"PIG1000", 1000},
		{"P2P017", 17},
		{"ACC", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := idSuffix(tt.id); got != tt.want {
			t.Errorf("idSuffix(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func nextID(t *testing.T, db *gorm.DB, prefix string) string {
	t.Helper()
	var id string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = NextID(tx, prefix)
		return err
	})
	if err != nil {
		t.Fatalf("NextID(%s) error = %v", prefix, err)
	}
	return id
}

func TestNextIDSequence(t *testing.T) {
	db := newTestDB(t)

	for _, want := range []string{"PIG001", "PIG002", "PIG003"} {
		if got := nextID(t, db, PrefixPiggy); got != want {
			t.Errorf("NextID() = %q, want %q", got, want)
		}
	}
	// у каждого префикса свой счетчик
	if got := nextID(t, db, PrefixTransaction); got != "TRX001" {
		t.Errorf("NextID(TRX) = %q, want TRX001", got)
	}
}

func TestNextIDSeedsFromExistingRows(t *testing.T) {
	db := newTestDB(t)

	for _, id := range []string{"ACC007", "ACC999", "ACC042"} {
		if err := db.Create(&models.Account{AccountID: id, UserID: "u1", Name: "legacy", Currency: "EUR", Balance: decimal.Zero}).Error; err != nil {
			t.Fatal(err)
		}
	}

	if got := nextID(t, db, PrefixAccount); got != "ACC1000" {
		t.Errorf("NextID() = %q, want ACC1000", got)
	}
	if got := nextID(t, db, PrefixAccount); got != "ACC1001" {
		t.Errorf("NextID() = %q, want ACC1001", got)
	}
}

func TestNextIDRolledBackWithTransaction(t *testing.T) {
	db := newTestDB(t)

	nextID(t, db, PrefixContact)
	_ = db.Transaction(func(tx *gorm.DB) error {
		if _, err := NextID(tx, PrefixContact); err != nil {
			return err
		}
		return ErrConflict
	})
	if got := nextID(t, db, PrefixContact); got != "CON002" {
		t.Errorf("NextID() after rollback = %q, want CON002", got)
	}
}
