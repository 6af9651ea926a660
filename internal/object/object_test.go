package object

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seraphic/internal/proof"
	"seraphic/internal/source"
)

func testWriter() *Writer {
	w := NewWriter(1)
	w.Code = []byte{0xE8, 0, 0, 0, 0, 0x0F, 0x05, 0xC3}
	w.ROData = []byte("hello\x00")
	w.Data = []byte{1, 2, 3, 4}
	w.BSSSize = 64

	table := proof.NewTable()
	table.Add(proof.Entry{
		Kind: proof.KindVoid, Status: proof.StatusRuntime,
		Pos:         source.Position{Filename: "t.sph", Line: 3, Column: 14},
		Description: "division may produce VOID (div by zero)",
	})
	table.Add(proof.Entry{
		Kind: proof.KindInit, Status: proof.StatusProven,
		Pos:         source.Position{Filename: "t.sph", Line: 4, Column: 5},
		Description: "variable initialized at declaration",
	})
	w.Proofs = table
	w.Effects = []EffectEntry{
		{Name: "main", FuncOffset: 0, FuncSize: 8, Declared: 0, Verified: 0},
	}
	return w
}

func TestBuildAndLoadRoundTrip(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)

	l, err := Load(image)
	require.NoError(t, err)

	assert.Equal(t, FileMagic, string(l.Header.Magic[:]))
	assert.Equal(t, uint16(VersionMajor), l.Header.VersionMajor)
	assert.Equal(t, uint16(1), l.Header.Arch)
	assert.Equal(t, uint64(len(image)), l.Header.TotalSize)

	assert.Equal(t, w.Code, l.Code)
	assert.Equal(t, w.ROData, l.ROData)
	assert.Equal(t, w.Data, l.Data)

	assert.Equal(t, uint32(2), l.Counts.Count)
	assert.Equal(t, uint32(1), l.Counts.Proven)
	assert.Equal(t, uint32(1), l.Counts.Runtime)

	require.NoError(t, l.Validate(DefaultConfig()))
	assert.Equal(t, ValidationPassed, l.Result())

	// Validation is idempotent on the same bytes.
	require.NoError(t, l.Validate(DefaultConfig()))
}

func TestHeaderSurvivesReload(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)

	l1, err := Load(image)
	require.NoError(t, err)
	copied := make([]byte, len(image))
	copy(copied, image)
	l2, err := Load(copied)
	require.NoError(t, err)

	if diff := cmp.Diff(l1.Header, l2.Header); diff != "" {
		t.Fatalf("headers differ after reload:\n%s", diff)
	}
}

func TestAlignmentInvariants(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)
	l, err := Load(image)
	require.NoError(t, err)

	assert.Zero(t, l.Header.Code.Offset%CodeAlign, "code is 16-byte aligned")
	for _, s := range []Section{
		l.Header.Manifest, l.Header.ROData, l.Header.Data,
		l.Header.Proofs, l.Header.Caps, l.Header.Effects, l.Header.Strings,
	} {
		assert.Zero(t, s.Offset%SectionAlign)
	}
}

func TestTamperedCodeRejected(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)

	l, err := Load(image)
	require.NoError(t, err)
	// Flip one byte inside the code section.
	image[l.Header.Code.Offset] ^= 0xFF

	l2, err := Load(image)
	require.NoError(t, err, "parse phase does not hash")
	err = l2.Validate(DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHashMismatch))
	assert.Equal(t, LoadErrHashMismatch, l2.LastError())
	assert.Equal(t, ValidationFailed, l2.Result())
}

func TestBadMagicRejected(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)
	copy(image[0:4], "NOPE")

	_, err = Load(image)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadMagic))
}

func TestVersionMismatchRejected(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)
	image[4] = 99 // bump major version

	_, err = Load(image)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersion))
}

func TestTruncatedRejected(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)

	_, err = Load(image[:HeaderSize-10])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTruncated))

	_, err = Load(image[:HeaderSize+8])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestKernelVersionGate(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)

	l, err := Load(image)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.KernelMin = 0x10000 // above the manifest's max of 0xFFFF
	cfg.KernelMax = 0x20000
	err = l.Validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKernelVersion))
}

func TestFailedProofsRejected(t *testing.T) {
	w := testWriter()
	w.Proofs.Add(proof.Entry{
		Kind: proof.KindBounds, Status: proof.StatusFailed,
		Description: "static out-of-bounds access",
	})
	image, err := w.Build()
	require.NoError(t, err)

	l, err := Load(image)
	require.NoError(t, err)
	err = l.Validate(DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFailedProofs))

	// Policy flag off: the image is accepted.
	cfg := DefaultConfig()
	cfg.RejectFailedProofs = false
	require.NoError(t, l.Validate(cfg))
}

func TestSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	w := testWriter()
	w.SignKey = priv
	image, err := w.Build()
	require.NoError(t, err)

	l, err := Load(image)
	require.NoError(t, err)
	assert.NotZero(t, l.Header.Flags&FlagSigned)

	cfg := DefaultConfig()
	cfg.PublicKey = pub
	require.NoError(t, l.Validate(cfg))

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	cfg.PublicKey = otherPub
	err = l.Validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSignature))
}

func TestWriteBufferCapacity(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)

	big := make([]byte, len(image)+128)
	n, err := w.WriteBuffer(big)
	require.NoError(t, err)
	assert.Equal(t, len(image), n)

	small := make([]byte, 32)
	_, err = w.WriteBuffer(small)
	assert.Error(t, err)
}

func TestWriteFileAndLoadFile(t *testing.T) {
	w := testWriter()
	path := filepath.Join(t.TempDir(), "a.out")
	require.NoError(t, w.WriteFile(path))

	l, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, l.Validate(DefaultConfig()))

	l.Unload()
	err = l.Validate(DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestLookupString(t *testing.T) {
	w := testWriter()
	image, err := w.Build()
	require.NoError(t, err)
	l, err := Load(image)
	require.NoError(t, err)

	// The fixed section-name ordering puts .manifest first.
	assert.Equal(t, ".manifest", l.LookupString(0))
}
