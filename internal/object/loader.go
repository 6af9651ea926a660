package object

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"seraphic/internal/proof"
)

// ErrKind is the loader's persistent last-error classification.
type ErrKind int

const (
	LoadErrNone ErrKind = iota
	LoadErrTruncated
	LoadErrBadMagic
	LoadErrVersion
	LoadErrSection
	LoadErrManifest
	LoadErrKernelVersion
	LoadErrHashMismatch
	LoadErrProofRoot
	LoadErrFailedProofs
	LoadErrSignature
	LoadErrNotLoaded
)

var errKindNames = map[ErrKind]string{
	LoadErrNone:          "ok",
	LoadErrTruncated:     "truncated image",
	LoadErrBadMagic:      "bad magic",
	LoadErrVersion:       "unsupported format version",
	LoadErrSection:       "section out of bounds",
	LoadErrManifest:      "invalid manifest",
	LoadErrKernelVersion: "kernel version range mismatch",
	LoadErrHashMismatch:  "content hash mismatch",
	LoadErrProofRoot:     "proof merkle root mismatch",
	LoadErrFailedProofs:  "image carries failed proofs",
	LoadErrSignature:     "signature verification failed",
	LoadErrNotLoaded:     "loader has no image",
}

func (k ErrKind) String() string { return errKindNames[k] }

// Sentinel errors for errors.Is gating.
var (
	ErrTruncated     = errors.New("truncated image")
	ErrBadMagic      = errors.New("bad magic")
	ErrVersion       = errors.New("unsupported format version")
	ErrSection       = errors.New("section out of bounds")
	ErrManifest      = errors.New("invalid manifest")
	ErrKernelVersion = errors.New("kernel version range mismatch")
	ErrHashMismatch  = errors.New("content hash mismatch")
	ErrProofRoot     = errors.New("proof merkle root mismatch")
	ErrFailedProofs  = errors.New("image carries failed proofs")
	ErrSignature     = errors.New("signature verification failed")
	ErrNotLoaded     = errors.New("loader has no image")
)

var kindErrors = map[ErrKind]error{
	LoadErrTruncated:     ErrTruncated,
	LoadErrBadMagic:      ErrBadMagic,
	LoadErrVersion:       ErrVersion,
	LoadErrSection:       ErrSection,
	LoadErrManifest:      ErrManifest,
	LoadErrKernelVersion: ErrKernelVersion,
	LoadErrHashMismatch:  ErrHashMismatch,
	LoadErrProofRoot:     ErrProofRoot,
	LoadErrFailedProofs:  ErrFailedProofs,
	LoadErrSignature:     ErrSignature,
	LoadErrNotLoaded:     ErrNotLoaded,
}

// Config controls full validation.
type Config struct {
	KernelMin          uint32
	KernelMax          uint32
	RejectFailedProofs bool
	// PublicKey enables signature verification for SIGNED images.
	PublicKey ed25519.PublicKey
}

// DefaultConfig accepts any kernel range and rejects failed proofs.
func DefaultConfig() Config {
	return Config{KernelMin: 0, KernelMax: 0xFFFFFFFF, RejectFailedProofs: true}
}

// ValidationResult is the outcome of the last Validate call.
type ValidationResult int

const (
	ValidationNone ValidationResult = iota
	ValidationPassed
	ValidationFailed
)

// Loader parses an executable image into read-only views and validates it.
// No partially validated state is ever exposed: views are populated only
// when the parse phase fully succeeds, and Validate reports through a
// single result.
type Loader struct {
	data   []byte
	owned  bool
	loaded bool

	Header   Header
	Manifest Manifest
	Counts   ProofCounts

	Code    []byte
	ROData  []byte
	Data    []byte
	Proofs  []byte
	Caps    []byte
	Effects []byte
	Strings []byte

	lastError ErrKind
	result    ValidationResult
}

// Load borrows a byte slice and runs the parse phase (header and section
// magics only; full validation is explicit).
func Load(data []byte) (*Loader, error) {
	l := &Loader{data: data}
	if err := l.parse(); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadFile reads an image from disk; the loader owns (and zero-wipes) the
// bytes.
func LoadFile(path string) (*Loader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l := &Loader{data: data, owned: true}
	if err := l.parse(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) fail(kind ErrKind, format string, args ...interface{}) error {
	l.lastError = kind
	base := kindErrors[kind]
	if format == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

func (l *Loader) parse() error {
	if len(l.data) < HeaderSize {
		return l.fail(LoadErrTruncated, "%d bytes", len(l.data))
	}
	h, err := DecodeHeader(l.data)
	if err != nil {
		return l.fail(LoadErrTruncated, "%v", err)
	}
	if string(h.Magic[:]) != FileMagic {
		return l.fail(LoadErrBadMagic, "%q", h.Magic)
	}
	if h.VersionMajor != VersionMajor {
		return l.fail(LoadErrVersion, "image v%d, loader v%d", h.VersionMajor, VersionMajor)
	}
	if h.TotalSize > uint64(len(l.data)) {
		return l.fail(LoadErrTruncated, "header claims %d bytes, have %d", h.TotalSize, len(l.data))
	}

	view := func(s Section) ([]byte, error) {
		if s.Size == 0 {
			return nil, nil
		}
		if s.Offset+s.Size > h.TotalSize {
			return nil, l.fail(LoadErrSection, "section [%d,%d) outside image", s.Offset, s.end())
		}
		return l.data[s.Offset:s.end()], nil
	}

	// BSS holds no file content and is skipped.
	if l.Code, err = view(h.Code); err != nil {
		return err
	}
	if l.ROData, err = view(h.ROData); err != nil {
		return err
	}
	if l.Data, err = view(h.Data); err != nil {
		return err
	}
	if l.Proofs, err = view(h.Proofs); err != nil {
		return err
	}
	if l.Caps, err = view(h.Caps); err != nil {
		return err
	}
	if l.Effects, err = view(h.Effects); err != nil {
		return err
	}
	if l.Strings, err = view(h.Strings); err != nil {
		return err
	}

	manifestView, err := view(h.Manifest)
	if err != nil {
		return err
	}
	m, err := DecodeManifest(manifestView)
	if err != nil {
		return l.fail(LoadErrManifest, "%v", err)
	}

	counts, err := DecodeProofCounts(l.Proofs)
	if err != nil {
		return l.fail(LoadErrSection, "%v", err)
	}
	if len(l.Caps) < 4 || string(l.Caps[0:4]) != CapMagic {
		return l.fail(LoadErrSection, "bad capability table magic")
	}
	if len(l.Effects) < 4 || string(l.Effects[0:4]) != EffectMagic {
		return l.fail(LoadErrSection, "bad effect table magic")
	}
	if len(l.Strings) < 4 || string(l.Strings[0:4]) != StrtabMagic {
		return l.fail(LoadErrSection, "bad string table magic")
	}

	l.Header = h
	l.Manifest = m
	l.Counts = counts
	l.loaded = true
	l.lastError = LoadErrNone
	return nil
}

// QuickValidate stops at the header checks already performed by the parse
// phase.
func (l *Loader) QuickValidate() error {
	if !l.loaded {
		return l.fail(LoadErrNotLoaded, "")
	}
	return nil
}

// Validate runs the full check sequence: kernel version intersection,
// content hash, proof Merkle root, failed-proof gating, and signature.
// It is idempotent on the same bytes.
func (l *Loader) Validate(cfg Config) error {
	if !l.loaded {
		l.result = ValidationFailed
		return l.fail(LoadErrNotLoaded, "")
	}

	if l.Manifest.KernelMin > cfg.KernelMax || l.Manifest.KernelMax < cfg.KernelMin {
		l.result = ValidationFailed
		return l.fail(LoadErrKernelVersion, "image requires [%d,%d], host offers [%d,%d]",
			l.Manifest.KernelMin, l.Manifest.KernelMax, cfg.KernelMin, cfg.KernelMax)
	}

	computed := sha256.Sum256(l.data[HeaderSize:l.Header.TotalSize])
	if computed != l.Header.ContentHash {
		l.result = ValidationFailed
		return l.fail(LoadErrHashMismatch, "")
	}

	hashes := make([][32]byte, l.Counts.Count)
	for i := 0; i < int(l.Counts.Count); i++ {
		h, err := ProofEntryHash(l.Proofs, i)
		if err != nil {
			l.result = ValidationFailed
			return l.fail(LoadErrSection, "%v", err)
		}
		hashes[i] = h
	}
	if proof.MerkleRoot(hashes) != l.Header.ProofRoot {
		l.result = ValidationFailed
		return l.fail(LoadErrProofRoot, "")
	}

	if cfg.RejectFailedProofs && l.Counts.Failed > 0 {
		l.result = ValidationFailed
		return l.fail(LoadErrFailedProofs, "%d failed entries", l.Counts.Failed)
	}

	if l.Header.Flags&FlagSigned != 0 && cfg.PublicKey != nil {
		sigOff := l.Header.TotalSize
		if sigOff+SignatureSize > uint64(len(l.data)) {
			l.result = ValidationFailed
			return l.fail(LoadErrSignature, "signature missing")
		}
		sig := l.data[sigOff : sigOff+SignatureSize]
		if !ed25519.Verify(cfg.PublicKey, l.Header.ContentHash[:], sig) {
			l.result = ValidationFailed
			return l.fail(LoadErrSignature, "")
		}
	}

	l.result = ValidationPassed
	l.lastError = LoadErrNone
	return nil
}

// LastError reports the most recent failure kind.
func (l *Loader) LastError() ErrKind { return l.lastError }

// Result reports the outcome of the last Validate call.
func (l *Loader) Result() ValidationResult { return l.result }

// LookupString reads a NUL-terminated string from the string table.
func (l *Loader) LookupString(off uint32) string {
	payload := l.Strings
	if len(payload) < 8 {
		return ""
	}
	payload = payload[8:]
	if int(off) >= len(payload) {
		return ""
	}
	end := int(off)
	for end < len(payload) && payload[end] != 0 {
		end++
	}
	return string(payload[int(off):end])
}

// Unload zero-wipes owned data and drops every view. The loader can no
// longer be validated afterwards.
func (l *Loader) Unload() {
	if l.owned {
		for i := range l.data {
			l.data[i] = 0
		}
	}
	l.data = nil
	l.Code, l.ROData, l.Data = nil, nil, nil
	l.Proofs, l.Caps, l.Effects, l.Strings = nil, nil, nil, nil
	l.loaded = false
	l.result = ValidationNone
}
