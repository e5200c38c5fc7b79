package explorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veeso-termscp/termscp-core/fsys"
)

func TestFormatSubstitutesKnownTokens(t *testing.T) {
	f := NewFormatter("{NAME} {SIZE}")
	entry := fsys.File{Path: "/home/a.txt", Meta: fsys.Metadata{Type: fsys.TypeRegular, Size: 42}}
	assert.Equal(t, "a.txt 42", f.Format(entry, "SFTP"))
}

func TestFormatPadsFixedWidthColumn(t *testing.T) {
	f := NewFormatter("[{NAME:8}]")
	entry := fsys.File{Path: "/ab", Meta: fsys.Metadata{Type: fsys.TypeRegular}}
	assert.Equal(t, "[ab      ]", f.Format(entry, "SFTP"))
}

func TestFormatTruncatesOverflowingColumn(t *testing.T) {
	f := NewFormatter("{NAME:3}")
	entry := fsys.File{Path: "/averylongname.txt", Meta: fsys.Metadata{Type: fsys.TypeRegular}}
	assert.Equal(t, "ave", f.Format(entry, "SFTP"))
}

func TestFormatPassesThroughUnknownToken(t *testing.T) {
	f := NewFormatter("{NAME} {BOGUS}")
	entry := fsys.File{Path: "/a.txt", Meta: fsys.Metadata{Type: fsys.TypeRegular}}
	assert.Equal(t, "a.txt {BOGUS}", f.Format(entry, "SFTP"))
}

func TestFormatProtSubstitutesProtocol(t *testing.T) {
	f := NewFormatter("{PROT}")
	entry := fsys.File{Path: "/a.txt"}
	assert.Equal(t, "SFTP", f.Format(entry, "SFTP"))
}

func TestFormatSymlinkTarget(t *testing.T) {
	f := NewFormatter("{NAME}{SYMLINK}")
	entry := fsys.File{Path: "/link", Meta: fsys.Metadata{Type: fsys.TypeSymlink, SymlinkTarget: "/real"}}
	assert.Equal(t, "link-> /real", f.Format(entry, "SFTP"))
}

func TestFormatPermissionString(t *testing.T) {
	f := NewFormatter("{PEX}")
	entry := fsys.File{Meta: fsys.Metadata{Mode: fsys.Mode{
		Known: true,
		Owner: fsys.Permissions{Read: true, Write: true, Execute: true},
		Group: fsys.Permissions{Read: true},
		All:   fsys.Permissions{Read: true},
	}}}
	assert.Equal(t, "-rwxr--r--", f.Format(entry, "SFTP"))
}

func TestFormatMTimeUsesLayout(t *testing.T) {
	f := NewFormatter("{MTIME}")
	mt := time.Date(2024, time.March, 5, 13, 30, 0, 0, time.UTC)
	entry := fsys.File{Meta: fsys.Metadata{Modified: mt}}
	assert.Equal(t, mt.Format(timeLayout), f.Format(entry, "SFTP"))
}
