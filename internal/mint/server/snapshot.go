package server

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot is the serialized form of a MemStore. Open handles and pending
// asynchronous operations are connection state and are not captured.
type snapshot struct {
	Files map[string][]byte `msgpack:"files"`
}

// Snapshot writes the current file contents of the store to w. The
// snapshot can be loaded into a fresh store with Restore.
func (s *MemStore) Snapshot(w io.Writer) error {
	s.mut.RLock()
	defer s.mut.RUnlock()

	snap := snapshot{Files: make(map[string][]byte, len(s.files))}
	for path, f := range s.files {
		data := make([]byte, len(f.data))
		copy(data, f.data)
		snap.Files[path] = data
	}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Restore replaces the store's files with the contents of a snapshot read
// from r. Handles and asynchronous operations opened before the restore
// keep referencing the files they were opened against.
func (s *MemStore) Restore(r io.Reader) error {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	s.files = make(map[string]*memFile, len(snap.Files))
	for path, data := range snap.Files {
		s.files[path] = &memFile{data: data}
	}
	return nil
}
