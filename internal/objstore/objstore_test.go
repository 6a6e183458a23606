package objstore

import (
	"errors"
	"os"
	"reflect"
	"testing"
)

func TestFilesystemStore_PutGetList(t *testing.T) {
	s := NewFilesystemStore(t.TempDir())

	if err := s.Put("sales/raw/sales_20240115_103000.json", []byte("{}\n"), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put("sales/raw/sales_20240115_113000.json", []byte("{}\n"), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put("other/x.json", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := s.Get("sales/raw/sales_20240115_103000.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "{}\n" {
		t.Fatalf("data: %q", data)
	}

	keys, err := s.List("sales/raw/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		"sales/raw/sales_20240115_103000.json",
		"sales/raw/sales_20240115_113000.json",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("list: got %v want %v", keys, want)
	}
}

func TestFilesystemStore_GetMissing(t *testing.T) {
	s := NewFilesystemStore(t.TempDir())
	if _, err := s.Get("sales/raw/nope.json"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist, got %v", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.Put("a/b", []byte("x"), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := s.Get("a/b")
	if err != nil || string(data) != "x" {
		t.Fatalf("get: %q %v", data, err)
	}
	if _, err := s.Get("a/c"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist, got %v", err)
	}
	keys, err := s.List("a/")
	if err != nil || len(keys) != 1 {
		t.Fatalf("list: %v %v", keys, err)
	}
}
