package cache

import (
	"testing"
	"time"
)

func TestSetGetDelete(t *testing.T) {
	c, err := New(1<<20, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Set("bir kedi çiz", "a cat, digital art")
	c.Wait()

	got, ok := c.Get("bir kedi çiz")
	if !ok || got != "a cat, digital art" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	c.Delete("bir kedi çiz")
	c.Wait()
	if _, ok := c.Get("bir kedi çiz"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestMissingKey(t *testing.T) {
	c, err := New(1<<20, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss")
	}
}
