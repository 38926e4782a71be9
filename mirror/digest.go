// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Digest is a BLAKE3 digest of a mirrored directory tree.
type Digest [32]byte

// String returns the hex encoding of d.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d is the zero digest (never computed).
func (d Digest) IsZero() bool { return d == Digest{} }

// treeDomainKey separates tree digests from any other BLAKE3 use. ASCII
// of the domain name, zero-padded to 32 bytes.
var treeDomainKey = [32]byte{
	'l', 'a', 'y', 'e', 'r', 'm', 'o', 'u', 'n', 't', '.', 'm', 'i', 'r', 'r', 'o',
	'r', '.', 't', 'r', 'e', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// TreeDigest hashes every entry under root in lexical walk order. Each
// entry contributes its slash-separated relative path, its file mode,
// and its content: file bytes for regular files, the target for
// symbolic links, nothing for directories. Fields are length-prefixed
// so no two distinct trees share an encoding.
func TreeDigest(root string) (Digest, error) {
	hasher, err := blake3.NewKeyed(treeDomainKey[:])
	if err != nil {
		panic("mirror: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var scratch [8]byte
	writeLength := func(n uint64) {
		binary.BigEndian.PutUint64(scratch[:], n)
		hasher.Write(scratch[:])
	}
	writeField := func(data []byte) {
		writeLength(uint64(len(data)))
		hasher.Write(data)
	}

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}

		writeField([]byte(filepath.ToSlash(relative)))
		binary.BigEndian.PutUint32(scratch[:4], uint32(info.Mode()))
		hasher.Write(scratch[:4])

		switch {
		case info.Mode().IsRegular():
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			writeLength(uint64(info.Size()))
			if _, err := io.CopyN(hasher, file, info.Size()); err != nil {
				return fmt.Errorf("hashing %s: %w", path, err)
			}
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			writeField([]byte(target))
		}
		return nil
	})
	if err != nil {
		return Digest{}, fmt.Errorf("digesting mirror %s: %w", root, err)
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}
