package fieldpath

import (
	"errors"
	"testing"

	lockerrors "github.com/mirkobrombin/go-lockon/v1/errors"
)

func TestCompileChecksStaticType(t *testing.T) {
	if _, err := Compile[client](nil, "addr.zip"); !errors.Is(err, lockerrors.ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
	if _, err := Compile[*client](nil, "Home.City"); err != nil {
		t.Fatalf("compile through pointer: %v", err)
	}
	if _, err := Compile[client](nil, "Extra.anything"); err != nil {
		t.Fatalf("segments below an interface are checked at run time, got %v", err)
	}
}

func TestCompiledAccessor(t *testing.T) {
	get := MustCompile[client](nil, "addr.City")
	v, err := get(client{addr: address{City: "A"}})
	if err != nil || v != "A" {
		t.Fatalf("expected A, got %v err %v", v, err)
	}
	dyn := MustCompile[client](nil, "Extra.nope")
	if _, err := dyn(client{Extra: address{}}); !errors.Is(err, lockerrors.ErrFieldNotFound) {
		t.Fatalf("expected run time ErrFieldNotFound, got %v", err)
	}
}

func TestMustCompilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustCompile[client](nil, "missing")
}
