package enums

import "testing"

func TestParseStorageDriver(t *testing.T) {
	for _, raw := range []string{"sqlite", "postgres", "bolt"} {
		got, err := ParseStorageDriver(raw)
		if err != nil {
			t.Fatalf("ParseStorageDriver(%q) error: %v", raw, err)
		}
		if got.String() != raw || !got.IsValid() {
			t.Fatalf("unexpected driver %q", got)
		}
	}
	if _, err := ParseStorageDriver("indexeddb"); err == nil {
		t.Fatal("expected unknown driver to fail")
	}
	if !StorageDriverPostgres.IsRelational() || StorageDriverBolt.IsRelational() {
		t.Fatal("unexpected relational classification")
	}
}

func TestMutationOp(t *testing.T) {
	if !MutationOpInsert.NeedsRecord() || !MutationOpPut.NeedsRecord() {
		t.Fatal("insert and put carry records")
	}
	if MutationOpDelete.NeedsRecord() || MutationOpClear.NeedsRecord() {
		t.Fatal("delete and clear carry no record")
	}
	if MutationOp("merge").IsValid() {
		t.Fatal("unknown op should be invalid")
	}
}
