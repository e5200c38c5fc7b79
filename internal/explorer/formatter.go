package explorer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/veeso-termscp/termscp-core/fsys"
)

const timeLayout = "02 Jan 2006 15:04"

var tokenRe = regexp.MustCompile(`\{([A-Z]+)(?::(\d+))?\}`)

var knownTokens = map[string]bool{
	"NAME": true, "PEX": true, "SIZE": true, "USER": true, "GROUP": true,
	"ATIME": true, "MTIME": true, "CTIME": true, "SYMLINK": true,
	"PATH": true, "PROT": true,
}

// Formatter renders a file listing entry line from a format string per
// spec §6: tokens of the shape {NAME} or {NAME:24} (a fixed column
// width), interspersed with literal text. Unknown tokens are passed
// through verbatim.
type Formatter struct {
	pattern string
}

// NewFormatter compiles pattern into a Formatter. Compilation cannot
// fail: unrecognized tokens are simply left as literal text at render
// time.
func NewFormatter(pattern string) *Formatter {
	return &Formatter{pattern: pattern}
}

// Format renders file (with protocol substituted for {PROT}) according
// to the formatter's pattern.
func (f *Formatter) Format(file fsys.File, protocol string) string {
	return tokenRe.ReplaceAllStringFunc(f.pattern, func(tok string) string {
		m := tokenRe.FindStringSubmatch(tok)
		name, width := m[1], m[2]
		if !knownTokens[name] {
			return tok
		}
		val := fieldValue(file, protocol, name)
		if width != "" {
			if w, err := strconv.Atoi(width); err == nil {
				val = fitWidth(val, w)
			}
		}
		return val
	})
}

func fieldValue(file fsys.File, protocol, name string) string {
	switch name {
	case "NAME":
		return file.Name()
	case "PEX":
		return permString(file.Meta.Mode)
	case "SIZE":
		return strconv.FormatInt(file.Meta.Size, 10)
	case "USER":
		return file.Meta.Owner
	case "GROUP":
		return file.Meta.Group
	case "ATIME":
		return file.Meta.Accessed.Format(timeLayout)
	case "MTIME":
		return file.Meta.Modified.Format(timeLayout)
	case "CTIME":
		return file.Meta.Created.Format(timeLayout)
	case "SYMLINK":
		if file.Meta.Type == fsys.TypeSymlink {
			return "-> " + file.Meta.SymlinkTarget
		}
		return ""
	case "PATH":
		return file.Path
	case "PROT":
		return protocol
	default:
		return ""
	}
}

func permString(m fsys.Mode) string {
	if !m.Known {
		return "----------"
	}
	var b strings.Builder
	b.WriteByte('-')
	for _, p := range []fsys.Permissions{m.Owner, m.Group, m.All} {
		b.WriteByte(triple(p.Read, 'r'))
		b.WriteByte(triple(p.Write, 'w'))
		b.WriteByte(triple(p.Execute, 'x'))
	}
	return b.String()
}

func triple(set bool, c byte) byte {
	if set {
		return c
	}
	return '-'
}

// fitWidth left-justifies val to width w, truncating if it overflows.
func fitWidth(val string, w int) string {
	if len(val) >= w {
		return val[:w]
	}
	return val + strings.Repeat(" ", w-len(val))
}
