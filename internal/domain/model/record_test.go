package model

import (
	"testing"
	"time"
)

// TestIsProtected проверяет признак парольной защиты.
func TestIsProtected(t *testing.T) {
	if (&FileRecord{}).IsProtected() {
		t.Error("запись без хэша не должна быть защищённой")
	}
	if !(&FileRecord{PasswordHash: "$2a$10$abc"}).IsProtected() {
		t.Error("запись с хэшем должна быть защищённой")
	}
}

// TestExpiry проверяет вычисление истечения: ExpiresAt согласован с
// IsExpired, граница TTL не считается просроченной.
func TestExpiry(t *testing.T) {
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec := &FileRecord{CreatedAt: created}
	ttl := time.Hour

	if got := rec.ExpiresAt(ttl); !got.Equal(created.Add(time.Hour)) {
		t.Errorf("ожидалось истечение %v, получено %v", created.Add(time.Hour), got)
	}

	if rec.IsExpired(created.Add(30*time.Minute), ttl) {
		t.Error("запись в середине TTL не должна быть просроченной")
	}
	if rec.IsExpired(rec.ExpiresAt(ttl), ttl) {
		t.Error("запись ровно на границе TTL ещё жива")
	}
	if !rec.IsExpired(rec.ExpiresAt(ttl).Add(time.Second), ttl) {
		t.Error("запись за границей TTL должна быть просроченной")
	}
}
