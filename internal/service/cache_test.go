package service

import (
	"testing"
	"time"
)

// TestPathCache_GetSet проверяет базовые операции Get/Set.
func TestPathCache_GetSet(t *testing.T) {
	cache := NewPathCache(100, 5*time.Minute)

	if _, ok := cache.Get("h1"); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	cache.Set("h1", "documents/file_1.pdf")
	got, ok := cache.Get("h1")
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got != "documents/file_1.pdf" {
		t.Errorf("path = %q, ожидался %q", got, "documents/file_1.pdf")
	}
}

// TestPathCache_Delete проверяет инвалидацию.
func TestPathCache_Delete(t *testing.T) {
	cache := NewPathCache(100, 5*time.Minute)
	cache.Set("h1", "p")
	cache.Delete("h1")

	if _, ok := cache.Get("h1"); ok {
		t.Fatal("ожидался cache miss после Delete")
	}
}

// TestPathCache_TTLExpiration проверяет автоматическое истечение TTL.
func TestPathCache_TTLExpiration(t *testing.T) {
	cache := NewPathCache(100, 50*time.Millisecond)
	cache.Set("h1", "p")

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.Get("h1"); ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestPathCache_MaxSize проверяет вытеснение при превышении размера.
func TestPathCache_MaxSize(t *testing.T) {
	cache := NewPathCache(2, 5*time.Minute)
	cache.Set("a", "1")
	cache.Set("b", "2")
	cache.Set("c", "3")

	if _, ok := cache.Get("a"); ok {
		t.Error("самый старый ключ должен быть вытеснен")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("новый ключ должен быть в кэше")
	}
}
