package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"piggybank/models"
)

func TestNormalizeSettings(t *testing.T) {
	tests := []struct {
		currency      string
		places        int
		threshold     string
		wantCurrency  string
		wantPlaces    int
		wantThreshold string
	}{
		{"usd", 2, "5", "USD", 2, "5"},
		{" gbp ", 4, "0.5", "GBP", 4, "0.5"},
		{"JPY", 9, "-3", "EUR", 4, "1"},
		{"", -1, "0", "EUR", 0, "1"},
		{"EUR", 3, "0.004", "EUR", 3, "1"},
		{"EUR", 2, "2.345", "EUR", 2, "2.35"},
	}
	for _, tt := range tests {
		currency, places, threshold := normalizeSettings(tt.currency, tt.places, dec(tt.threshold))
		if currency != tt.wantCurrency || places != tt.wantPlaces || !threshold.Equal(dec(tt.wantThreshold)) {
			t.Errorf("normalizeSettings(%q, %d, %s) = %s, %d, %s; want %s, %d, %s",
				tt.currency, tt.places, tt.threshold, currency, places, threshold,
				tt.wantCurrency, tt.wantPlaces, tt.wantThreshold)
		}
	}
}

func TestSettingsLazyDefaultsAndUpsert(t *testing.T) {
	f := newFixture(t)

	s, err := f.settings.Get(f.ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.DefaultCurrency != "EUR" || s.DecimalPlaces != 2 || !s.NotifyThreshold.Equal(decimal.NewFromInt(1)) {
		t.Errorf("defaults = %+v", s)
	}

	updated, err := f.settings.Update(f.ctx, UpdateSettingsRequest{UserID: "u1", DefaultCurrency: "gbp", DecimalPlaces: 7, NotifyThreshold: dec("-1")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.DefaultCurrency != "GBP" || updated.DecimalPlaces != 4 || !updated.NotifyThreshold.Equal(decimal.NewFromInt(1)) {
		t.Errorf("updated = %+v", updated)
	}

	// upsert для пользователя без строки
	fresh, err := f.settings.Update(f.ctx, UpdateSettingsRequest{UserID: "u2", DefaultCurrency: "USD", DecimalPlaces: 0, NotifyThreshold: dec("25")})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.DefaultCurrency != "USD" || !fresh.NotifyThreshold.Equal(dec("25")) {
		t.Errorf("fresh = %+v", fresh)
	}
	if n := f.count(t, &models.UserSettings{}, "user_id IN ?", []string{"u1", "u2"}); n != 2 {
		t.Errorf("settings rows = %d, want 2", n)
	}

	if _, err := f.settings.Update(f.ctx, UpdateSettingsRequest{UserID: "u1", Email: "not-an-email"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Update(bad email) error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.settings.Get(f.ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Get(\"\") error = %v, want ErrInvalidInput", err)
	}
}
