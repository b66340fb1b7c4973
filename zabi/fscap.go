// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zabi

import (
	"encoding/binary"
	"strings"

	"go.mozilla.org/pkcs7"
	"golang.org/x/sys/unix"

	"github.com/semtoolchain/sem/zerr"
)

// OpenFlags is the guest-supplied bitset of requested open modes (spec
// §4.5).
type OpenFlags uint32

const (
	OpenRead OpenFlags = 1 << iota
	OpenWrite
	OpenCreate
	OpenTrunc
	OpenAppend
)

// OpenParams is the packed record file/fs.open_from_params decodes:
// (u64 path_ptr, u32 path_len, u32 open_flags, u32 create_mode).
type OpenParams struct {
	PathPtr    Ptr
	PathLen    uint32
	OpenFlags  OpenFlags
	CreateMode uint32
}

const openParamsSize = 8 + 4 + 4 + 4

// DecodeOpenParams parses the fixed-shape packed record from buf.
func DecodeOpenParams(buf []byte) (OpenParams, error) {
	if len(buf) != openParamsSize {
		return OpenParams{}, zerr.New(zerr.Invalid, "fs: open params must be 20 bytes")
	}
	return OpenParams{
		PathPtr:    Ptr(binary.LittleEndian.Uint64(buf[0:8])),
		PathLen:    binary.LittleEndian.Uint32(buf[8:12]),
		OpenFlags:  OpenFlags(binary.LittleEndian.Uint32(buf[12:16])),
		CreateMode: binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// FSCap is the file/fs capability: sandboxed path resolution rooted at
// a directory opened with O_NOFOLLOW, walked component-by-component so
// neither `..` nor a symlink segment can escape the root (spec §4.5).
type FSCap struct {
	rootFD int
	rootOK bool
}

// NewFSCap opens fsRoot as the sandbox root. The capability is denied
// for every request when fsRoot is empty (spec §4.5: "denied unless the
// runtime has a non-empty fs_root").
func NewFSCap(fsRoot string) (*FSCap, error) {
	if fsRoot == "" {
		return &FSCap{}, nil
	}
	fd, err := unix.Open(fsRoot, unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_RDONLY, 0)
	if err != nil {
		return nil, zerr.Newf(zerr.Denied, "fs: cannot open root %q: %v", fsRoot, err)
	}
	return &FSCap{rootFD: fd, rootOK: true}, nil
}

func (c *FSCap) Close() error {
	if !c.rootOK {
		return nil
	}
	return unix.Close(c.rootFD)
}

func mapOpenFlags(f OpenFlags) int {
	var sys int
	switch {
	case f&OpenRead != 0 && f&OpenWrite != 0:
		sys = unix.O_RDWR
	case f&OpenWrite != 0:
		sys = unix.O_WRONLY
	default:
		sys = unix.O_RDONLY
	}
	if f&OpenCreate != 0 {
		sys |= unix.O_CREAT
	}
	if f&OpenTrunc != 0 {
		sys |= unix.O_TRUNC
	}
	if f&OpenAppend != 0 {
		sys |= unix.O_APPEND
	}
	return sys
}

func mapErrno(err error) zerr.Code {
	return zerr.FromOSErrno(
		err == unix.EAGAIN || err == unix.EWOULDBLOCK,
		err == unix.EBADF,
		err == unix.EACCES || err == unix.EPERM || err == unix.ELOOP,
		err == unix.ENOENT || err == unix.ENOTDIR,
		err == unix.EISDIR,
		err == unix.ENOMEM,
	)
}

// Open resolves path against the sandbox root and opens it with flags,
// returning the resulting file descriptor. path must be absolute;
// every "." segment is skipped, every ".." segment is denied, every
// non-final segment must be a directory opened with
// {O_DIRECTORY, O_NOFOLLOW}, and the final segment is opened with the
// translated flags plus O_NOFOLLOW. Any symlink encountered, or any
// underlying openat failure, fails per the mapping in spec §7.
func (c *FSCap) Open(path string, flags OpenFlags, createMode uint32) (int, error) {
	if !c.rootOK {
		return -1, zerr.New(zerr.Denied, "fs: capability not configured (empty fs_root)")
	}
	if !strings.HasPrefix(path, "/") {
		return -1, zerr.New(zerr.Invalid, "fs: path must be absolute")
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	var segs []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			return -1, zerr.New(zerr.Denied, "fs: .. is not permitted")
		default:
			segs = append(segs, p)
		}
	}
	if len(segs) == 0 {
		return -1, zerr.New(zerr.Invalid, "fs: empty path")
	}

	dirFD := c.rootFD
	closeDir := false
	defer func() {
		if closeDir {
			unix.Close(dirFD)
		}
	}()

	for i, seg := range segs {
		last := i == len(segs)-1
		if !last {
			nfd, err := unix.Openat(dirFD, seg, unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_RDONLY, 0)
			if err != nil {
				return -1, zerr.Newf(mapErrno(err), "fs: open directory segment %q: %v", seg, err)
			}
			if closeDir {
				unix.Close(dirFD)
			}
			dirFD = nfd
			closeDir = true
			continue
		}
		sysFlags := mapOpenFlags(flags) | unix.O_NOFOLLOW
		fd, err := unix.Openat(dirFD, seg, sysFlags, uint32(createMode))
		if err != nil {
			return -1, zerr.Newf(mapErrno(err), "fs: open final segment %q: %v", seg, err)
		}
		return fd, nil
	}
	return -1, zerr.New(zerr.Internal, "fs: unreachable")
}

// VerifyManifest checks a PKCS#7-signed manifest blob before a sandbox
// root is trusted. This is additive beyond the base file/fs capability
// (spec §4.5 names no manifest concept): callers gate it behind
// RuntimeConfig.RequireSignedManifest, and it leaves default file/fs
// semantics unchanged when unused. A malformed or unsigned blob is
// reported as zerr.Denied rather than zerr.Invalid, since the caller is
// asking "may this root be trusted", not "is this well-formed input".
func VerifyManifest(signed []byte) error {
	p7, err := pkcs7.Parse(signed)
	if err != nil {
		return zerr.Newf(zerr.Denied, "fs: manifest is not a valid PKCS#7 signature: %v", err)
	}
	if err := p7.Verify(); err != nil {
		return zerr.Newf(zerr.Denied, "fs: manifest signature verification failed: %v", err)
	}
	return nil
}

// fileHandle adapts a raw file descriptor to HandleOps.
type fileHandle struct {
	fd int
}

func (f *fileHandle) Read(dst []byte) (int, error) {
	n, err := unix.Read(f.fd, dst)
	if err != nil {
		return 0, zerr.Newf(mapErrno(err), "fs: read: %v", err)
	}
	return n, nil
}

func (f *fileHandle) Write(src []byte) (int, error) {
	n, err := unix.Write(f.fd, src)
	if err != nil {
		return 0, zerr.Newf(mapErrno(err), "fs: write: %v", err)
	}
	return n, nil
}

func (f *fileHandle) End() error {
	if err := unix.Close(f.fd); err != nil {
		return zerr.Newf(mapErrno(err), "fs: close: %v", err)
	}
	return nil
}
