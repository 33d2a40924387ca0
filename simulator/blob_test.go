package simulator

import (
	"testing"
)

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		header     string
		size       int64
		start, end int64
		wantErr    bool
	}{
		{"bytes=0-", 10, 0, 9, false},
		{"bytes=4-", 10, 4, 9, false},
		{"bytes=2-5", 10, 2, 5, false},
		{"bytes=2-999", 10, 2, 9, false},
		{"bytes=10-", 10, 0, 0, true}, // at the end: nothing left to read
		{"bytes=-5", 10, 0, 0, true},
		{"chunk=0-", 10, 0, 0, true},
		{"bytes=5-2", 10, 0, 0, true},
	}
	for _, tt := range tests {
		start, end, err := parseByteRange(tt.header, tt.size)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseByteRange(%q, %d) succeeded, want error", tt.header, tt.size)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseByteRange(%q, %d): %v", tt.header, tt.size, err)
			continue
		}
		if start != tt.start || end != tt.end {
			t.Errorf("parseByteRange(%q, %d) = %d-%d, want %d-%d", tt.header, tt.size, start, end, tt.start, tt.end)
		}
	}
}

func TestBlobStoreBlockCommit(t *testing.T) {
	store := newBlobStore()

	store.stageBlock("acct", "data", "big.bin", "YmxvY2sx", []byte("part one "))
	store.stageBlock("acct", "data", "big.bin", "YmxvY2sy", []byte("part two"))

	if err := store.commitBlocks("acct", "data", "big.bin", []string{"YmxvY2sx", "YmxvY2sy"}, "application/octet-stream"); err != nil {
		t.Fatal(err)
	}
	obj, ok := store.get("acct", "data", "big.bin")
	if !ok {
		t.Fatal("committed blob missing")
	}
	if string(obj.data) != "part one part two" {
		t.Errorf("committed data = %q", obj.data)
	}

	// Committing an unstaged block fails and staged blocks are gone after
	// a commit.
	if err := store.commitBlocks("acct", "data", "big.bin", []string{"YmxvY2sx"}, ""); err == nil {
		t.Error("commit of consumed block succeeded, want error")
	}
}

func TestBlobStoreListByPrefix(t *testing.T) {
	store := newBlobStore()
	store.put("acct", "data", "mortgage-data/names.csv", []byte("a,b"), "text/csv")
	store.put("acct", "data", "mortgage-data/acq/file.txt", []byte("xx"), "text/plain")
	store.put("acct", "data", "code/script.py", []byte("print()"), "text/x-python")

	all := store.list("acct", "data", "")
	if len(all) != 3 {
		t.Fatalf("list all = %d blobs, want 3", len(all))
	}
	// Sorted by name.
	if all[0].name != "code/script.py" || all[2].name != "mortgage-data/names.csv" {
		t.Errorf("list order = %v, %v, %v", all[0].name, all[1].name, all[2].name)
	}

	data := store.list("acct", "data", "mortgage-data/")
	if len(data) != 2 {
		t.Errorf("list under prefix = %d blobs, want 2", len(data))
	}
	if got := store.list("acct", "other", ""); len(got) != 0 {
		t.Errorf("list of other container = %d blobs, want 0", len(got))
	}
}
