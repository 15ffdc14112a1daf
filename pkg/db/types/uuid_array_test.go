package dbtypes

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDArrayValueAndScan(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	arr := UUIDArray{first, second}

	raw, err := arr.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	want := "{" + first.String() + "," + second.String() + "}"
	if raw != want {
		t.Fatalf("expected %q got %v", want, raw)
	}

	var scanned UUIDArray
	if err := scanned.Scan([]byte(want)); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(scanned) != 2 || scanned[0] != first || scanned[1] != second {
		t.Fatalf("order not preserved: %v", scanned)
	}
}

func TestUUIDArrayScanEmpty(t *testing.T) {
	var arr UUIDArray
	if err := arr.Scan(nil); err != nil || len(arr) != 0 {
		t.Fatalf("nil scan: %v %v", arr, err)
	}
	if err := arr.Scan("{}"); err != nil || len(arr) != 0 {
		t.Fatalf("empty scan: %v %v", arr, err)
	}
	if err := arr.Scan(42); err == nil {
		t.Fatal("expected unsupported type error")
	}
}

func TestUUIDArrayScanQuotedLiteral(t *testing.T) {
	id := uuid.New()
	var arr UUIDArray
	if err := arr.Scan(`{"` + id.String() + `"}`); err != nil {
		t.Fatalf("scan quoted: %v", err)
	}
	if len(arr) != 1 || arr[0] != id {
		t.Fatalf("unexpected %v", arr)
	}
	if err := arr.Scan("{not-a-uuid}"); err == nil {
		t.Fatal("expected parse error")
	}
	if len(arr) != 1 {
		t.Fatalf("failed scan should leave the array untouched, got %v", arr)
	}
}
