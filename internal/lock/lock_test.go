package lock

import (
	"errors"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}

	// Reacquire after release.
	l2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("reacquire error = %v", err)
	}
	_ = l2.Release()
}

func TestSecondAcquireFails(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Release() }()

	_, err = Acquire(dir)
	if err == nil {
		t.Fatal("second Acquire should fail while lock is held")
	}
	var held *LockHeldError
	if !errors.As(err, &held) {
		t.Errorf("error type = %T, want *LockHeldError", err)
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("Release on nil = %v, want nil", err)
	}
}
