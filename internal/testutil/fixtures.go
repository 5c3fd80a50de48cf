// Package testutil holds fixture builders shared by package tests: Event-B
// machine documents, model directories and zip bundles.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// BumDocument returns a minimal Event-B machine document. An empty refines
// produces a machine without a refinement clause.
func BumDocument(refines string) string {
	clause := ""
	if refines != "" {
		clause = fmt.Sprintf("\n<org.eventb.core.refinesMachine name=\"_r1\" org.eventb.core.target=%q/>", refines)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<org.eventb.core.machineFile org.eventb.core.configuration="org.eventb.core.fwd" version="5">%s
<org.eventb.core.event name="_e1" org.eventb.core.convergence="0" org.eventb.core.extended="false" org.eventb.core.label="INITIALISATION"/>
</org.eventb.core.machineFile>
`, clause)
}

// WriteFiles writes each relative path -> content pair beneath root, creating
// parent directories as needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// ZipEntry is one entry of a test archive. Entries whose name ends in "/"
// become directory entries.
type ZipEntry struct {
	Name    string
	Content []byte
}

// ZipBytes builds an archive in memory. Entry names are written verbatim so
// tests can produce traversal names such as "../evil.bum".
func ZipBytes(t *testing.T, entries []ZipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
		require.NoError(t, err)
		if len(e.Content) > 0 && !strings.HasSuffix(e.Name, "/") {
			_, err = w.Write(e.Content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteZip writes an archive built from entries to dir/name and returns its path.
func WriteZip(t *testing.T, dir, name string, entries []ZipEntry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, ZipBytes(t, entries), 0o644))
	return path
}

// ChainEntries returns zip entries for a linear refinement chain under prefix:
// names[0] refines nothing and every later machine refines its predecessor.
func ChainEntries(prefix string, names ...string) []ZipEntry {
	entries := []ZipEntry{{Name: prefix + "/"}}
	for i, name := range names {
		refines := ""
		if i > 0 {
			refines = names[i-1]
		}
		entries = append(entries, ZipEntry{
			Name:    prefix + "/" + name + ".bum",
			Content: []byte(BumDocument(refines)),
		})
	}
	return entries
}
