package digest

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"
)

// FileEntry is the minimal information the Merkle tree needs about a
// single file: its project-relative path, content digest, and
// executable bit. Callers (pkg/fingerprint) adapt their richer
// ResolvedInput into this shape.
type FileEntry struct {
	RelPath    string
	Content    Digest
	Executable bool
}

// DirNode is the canonical encoding of one directory: files and
// subdirectories sorted ascending by name (specification §3
// "Directory node").
type DirNode struct {
	Files   []FileRef
	Subdirs []SubdirRef
}

// FileRef names a file within a DirNode.
type FileRef struct {
	Name       string
	Content    Digest
	Executable bool
}

// SubdirRef names a subdirectory within a DirNode by the digest of its
// own canonical encoding.
type SubdirRef struct {
	Name   string
	Digest Digest
}

// Tree maps every discovered directory digest to its DirNode value and
// exposes the single root digest (specification §4.1 "build_tree").
type Tree struct {
	Root  Digest
	Nodes map[string]DirNode // keyed by Digest.Hash
}

// BuildTree groups files by parent directory and recursively computes
// directory digests from their canonical encoding. Equal content
// (same file set, names, bytes) always yields an equal root digest,
// regardless of the order entries were supplied in.
func BuildTree(files []FileEntry) Tree {
	type dirBuild struct {
		files   []FileRef
		subdirs map[string]struct{}
	}
	dirs := map[string]*dirBuild{"": {subdirs: map[string]struct{}{}}}

	ensureDir := func(path string) *dirBuild {
		if d, ok := dirs[path]; ok {
			return d
		}
		d := &dirBuild{subdirs: map[string]struct{}{}}
		dirs[path] = d
		return d
	}

	for _, f := range files {
		rel := strings.Trim(f.RelPath, "/")
		dir, name := splitParent(rel)
		ensureDir(dir)
		d := dirs[dir]
		d.files = append(d.files, FileRef{Name: name, Content: f.Content, Executable: f.Executable})

		// Register dir (and every ancestor) as a subdir of its parent.
		cur := dir
		for cur != "" {
			parent, base := splitParent(cur)
			ensureDir(parent)
			dirs[parent].subdirs[base] = struct{}{}
			cur = parent
		}
	}

	nodes := map[string]DirNode{}
	var compute func(path string) Digest
	memo := map[string]Digest{}
	compute = func(path string) Digest {
		if d, ok := memo[path]; ok {
			return d
		}
		build := dirs[path]
		node := DirNode{}
		for name := range build.subdirs {
			subPath := name
			if path != "" {
				subPath = path + "/" + name
			}
			node.Subdirs = append(node.Subdirs, SubdirRef{Name: name, Digest: compute(subPath)})
		}
		sort.Slice(node.Subdirs, func(i, j int) bool { return node.Subdirs[i].Name < node.Subdirs[j].Name })
		node.Files = append(node.Files, build.files...)
		sort.Slice(node.Files, func(i, j int) bool { return node.Files[i].Name < node.Files[j].Name })

		enc := encodeDirNode(node)
		d := Bytes(enc)
		nodes[d.Hash] = node
		memo[path] = d
		return d
	}

	root := compute("")
	return Tree{Root: root, Nodes: nodes}
}

// splitParent splits a forward-slash normalized relative path into
// its parent directory ("" for top-level) and base name.
func splitParent(relPath string) (parent, base string) {
	idx := strings.LastIndex(relPath, "/")
	if idx < 0 {
		return "", relPath
	}
	return relPath[:idx], relPath[idx+1:]
}

// encodeDirNode produces the canonical byte encoding of a DirNode.
// Ascending name order is an input invariant (enforced by BuildTree's
// sort above), not re-sorted here, so this function alone cannot hide
// an ordering bug from its caller. A directory with no files and no
// subdirectories (only the root of an empty input set) encodes to the
// empty byte sequence, so its digest is EmptyHash with size 0.
func encodeDirNode(n DirNode) []byte {
	if len(n.Files) == 0 && len(n.Subdirs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(n.Files)))
	for _, f := range n.Files {
		writeString(&buf, f.Name)
		writeString(&buf, f.Content.Hash)
		writeUvarint(&buf, uint64(f.Content.SizeBytes))
		if f.Executable {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	writeUvarint(&buf, uint64(len(n.Subdirs)))
	for _, s := range n.Subdirs {
		writeString(&buf, s.Name)
		writeString(&buf, s.Digest.Hash)
		writeUvarint(&buf, uint64(s.Digest.SizeBytes))
	}
	return buf.Bytes()
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}
