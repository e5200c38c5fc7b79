package explorer

// defaultStackSize is the navigation-stack depth used when a builder
// never calls WithStackSize.
const defaultStackSize = 16

// Builder assembles an Explorer fluently, mirroring the original
// FileExplorerBuilder: hidden-files flag, sort mode, group-dirs
// policy, stack size, and format string.
type Builder struct {
	e *Explorer
}

// NewBuilder starts a builder with the explorer's defaults: visible
// entries only, sort by name, no directory grouping, a 16-deep
// navigation stack, no formatter.
func NewBuilder() *Builder {
	return &Builder{e: &Explorer{stackSize: defaultStackSize, sortMode: SortByName}}
}

// WithHiddenFiles sets whether dotfiles are included in Visible.
func (b *Builder) WithHiddenFiles(show bool) *Builder {
	b.e.showHidden = show
	return b
}

// WithFileSorting sets the primary sort key.
func (b *Builder) WithFileSorting(mode SortMode) *Builder {
	b.e.sortMode = mode
	return b
}

// WithGroupDirs sets the directory-grouping policy; nil leaves
// directories interleaved with files.
func (b *Builder) WithGroupDirs(g *GroupDirs) *Builder {
	b.e.groupDirs = g
	return b
}

// WithStackSize caps the navigation stack depth.
func (b *Builder) WithStackSize(size int) *Builder {
	b.e.stackSize = size
	return b
}

// WithFormatter sets the format string used by Explorer.Format. An
// empty string leaves the explorer with no formatter (Format falls
// back to the bare file name).
func (b *Builder) WithFormatter(pattern string) *Builder {
	if pattern != "" {
		b.e.formatter = NewFormatter(pattern)
	}
	return b
}

// Build returns the assembled Explorer.
func (b *Builder) Build() *Explorer {
	return b.e
}
