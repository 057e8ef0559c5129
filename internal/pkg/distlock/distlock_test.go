package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLock_MutualExclusion(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "auto-approval", time.Minute)
	b := NewRedisLock(client, "auto-approval", time.Minute)

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("a.Acquire = %v, %v", ok, err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("b.Acquire = %v, %v; want false", ok, err)
	}

	// b cannot release a's lock.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("b.Release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatal("b acquired a lock it does not own")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("a.Release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatal("b could not acquire after release")
	}
}

func TestRedisLock_Extend(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "job", time.Second)
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	if err := l.Extend(ctx, time.Minute); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if ttl := mr.TTL(l.Key()); ttl < 30*time.Second {
		t.Errorf("TTL = %s, want ~1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.Extend(ctx, time.Minute); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Extend after expiry = %v, want ErrNotOwner", err)
	}
}

func TestWithLock_SkipsWhenHeld(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	holder := NewRedisLock(client, "tick", time.Minute)
	if ok, _ := holder.Acquire(ctx); !ok {
		t.Fatal("holder acquire failed")
	}

	called := false
	ran, err := WithLock(ctx, NewRedisLock(client, "tick", time.Minute), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || ran || called {
		t.Fatalf("WithLock ran=%v called=%v err=%v; want skipped", ran, called, err)
	}

	holder.Release(ctx)
	ran, err = WithLock(ctx, NewRedisLock(client, "tick", time.Minute), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !ran || !called {
		t.Fatalf("WithLock ran=%v called=%v err=%v; want ran", ran, called, err)
	}
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	l := NewPGAdvisoryLock(db, "auto-approval")

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := l.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGAdvisoryLock_NotAcquired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	l := NewPGAdvisoryLock(db, "auto-approval")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := l.Acquire(context.Background())
	if err != nil || ok {
		t.Fatalf("Acquire = %v, %v; want false", ok, err)
	}
	// Release without holding is a no-op.
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
