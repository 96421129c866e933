package lockon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	lockerrors "github.com/mirkobrombin/go-lockon/v1/errors"
	"github.com/mirkobrombin/go-lockon/v1/intern"
)

type account struct {
	ID      string
	Balance int
}

type transfer struct {
	From account
	note string
}

func TestDecorateSerializesEqualKeys(t *testing.T) {
	var active, peak int32
	op := Decorate(nil, func(a account) string { return a.ID }, func(ctx context.Context, a account) (int, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&peak)
			if n <= m || atomic.CompareAndSwapInt32(&peak, m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return a.Balance, nil
	})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if v, err := op(context.Background(), account{ID: "acc", Balance: i}); err != nil || v != i {
				t.Errorf("expected %d, got %d err %v", i, v, err)
			}
		}(i)
	}
	wg.Wait()
	if p := atomic.LoadInt32(&peak); p != 1 {
		t.Fatalf("expected no concurrency, peak %d", p)
	}
}

func TestDecorateDifferentKeysRunConcurrently(t *testing.T) {
	reg := intern.NewRegistry[string]()
	both := make(chan struct{})
	var arrived int32
	op := Decorate(reg, func(id string) string { return id }, func(ctx context.Context, id string) (bool, error) {
		if atomic.AddInt32(&arrived, 1) == 2 {
			close(both)
		}
		select {
		case <-both:
			return true, nil
		case <-time.After(200 * time.Millisecond):
			return false, nil
		}
	})
	results := make(chan bool, 2)
	for _, id := range []string{"a", "b"} {
		go func(id string) {
			ok, _ := op(context.Background(), id)
			results <- ok
		}(id)
	}
	if !<-results || !<-results {
		t.Fatal("different keys were serialized")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected registry drained, got %d", reg.Len())
	}
}

func TestDecorate2LocksOnSecondInput(t *testing.T) {
	reg := intern.NewRegistry[string]()
	op := Decorate2(reg, func(_ int, a account) string { return a.ID }, func(ctx context.Context, n int, a account) (int, error) {
		if reg.Len() != 1 {
			t.Errorf("expected one live monitor, got %d", reg.Len())
		}
		return n + a.Balance, nil
	})
	v, err := op(context.Background(), 2, account{ID: "x", Balance: 3})
	if err != nil || v != 5 {
		t.Fatalf("expected 5, got %d err %v", v, err)
	}
}

func TestDecoratePath(t *testing.T) {
	in := New(WithRegistry(intern.NewRegistry[any]()))
	if _, err := DecoratePath(in, "From.Missing", func(ctx context.Context, tr transfer) (int, error) { return 0, nil }); !errors.Is(err, lockerrors.ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound at configuration, got %v", err)
	}
	op, err := DecoratePath(in, "From.ID", func(ctx context.Context, tr transfer) (string, error) {
		return tr.note, nil
	})
	if err != nil {
		t.Fatalf("decorate: %v", err)
	}
	v, err := op(context.Background(), transfer{From: account{ID: "x"}, note: "ok"})
	if err != nil || v != "ok" {
		t.Fatalf("expected ok, got %q err %v", v, err)
	}
	sentinel := errors.New("declined")
	failing, _ := DecoratePath(in, "note", func(ctx context.Context, tr transfer) (string, error) {
		return "partial", sentinel
	})
	v, err = failing(context.Background(), transfer{note: "n"})
	if err != sentinel || v != "partial" {
		t.Fatalf("expected partial result and unchanged error, got %q %v", v, err)
	}
}

func TestDecorateNilRegistrySharedAcrossOperations(t *testing.T) {
	held := make(chan struct{})
	release := make(chan struct{})
	first := Decorate(nil, func(a account) string { return a.ID }, func(ctx context.Context, a account) (int, error) {
		close(held)
		<-release
		return 0, nil
	})
	second := Decorate2(nil, func(_ int, a account) string { return a.ID }, func(ctx context.Context, _ int, a account) (int, error) {
		return 1, nil
	})
	go func() { _, _ = first(context.Background(), account{ID: "shared-acc"}) }()
	<-held

	done := make(chan struct{})
	go func() {
		_, _ = second(context.Background(), 0, account{ID: "shared-acc"})
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("operations decorated separately did not exclude each other")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second operation never ran")
	}
	if intern.For[string]() != intern.For[string]() {
		t.Fatal("expected one registry per key type")
	}
}
