package indexer

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestBlockRangeHalves(t *testing.T) {
	got := BlockRange{From: 10, To: 14}.Halves()
	want := []BlockRange{{From: 10, To: 12}, {From: 13, To: 14}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("halves mismatch: %+v != %+v", got, want)
	}

	single := BlockRange{From: 7, To: 7}
	if got := single.Halves(); !reflect.DeepEqual(got, []BlockRange{single}) {
		t.Fatalf("single block range should not split: %+v", got)
	}
	if size := (BlockRange{From: 1, To: 10000}).Size(); size != 10000 {
		t.Fatalf("unexpected size %d", size)
	}
}
