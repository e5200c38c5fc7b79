// Package syncbrowse implements the sync-browsing coordinator (spec
// §4.6): when enabled, a directory change on one pane is mirrored onto
// the opposite pane, prompting to create the opposite directory when
// it is missing and disabling itself if the user declines.
package syncbrowse

import (
	"context"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/veeso-termscp/termscp-core/fsys"
)

var log = logrus.WithField("component", "syncbrowse")

// DestinationKind identifies how the opposite pane's target path is
// derived from the action that triggered it on the active pane.
type DestinationKind int

const (
	// Path names a direct child of the opposite pane's current directory.
	Path DestinationKind = iota
	// ParentDir is the parent of the opposite pane's current directory.
	ParentDir
	// PreviousDir pops the opposite pane's own navigation stack.
	PreviousDir
)

// Destination describes the directory change to mirror onto the
// opposite pane.
type Destination struct {
	Kind DestinationKind
	Name string // child name, used only when Kind == Path
}

// ConfirmFunc asks the user whether to create a missing opposite
// directory. A false answer disables sync browsing.
type ConfirmFunc func(missingPath string) bool

// Coordinator holds sync-browsing's on/off state, which persists
// across individual directory changes until explicitly toggled or
// until a refused create-directory prompt disables it.
type Coordinator struct {
	enabled bool
	confirm ConfirmFunc
}

// New builds a disabled Coordinator using confirm to prompt for
// missing-directory creation.
func New(confirm ConfirmFunc) *Coordinator {
	return &Coordinator{confirm: confirm}
}

// Enabled reports whether sync browsing is currently active.
func (c *Coordinator) Enabled() bool { return c.enabled }

// Enable turns sync browsing on.
func (c *Coordinator) Enable() { c.enabled = true }

// Disable turns sync browsing off.
func (c *Coordinator) Disable() { c.enabled = false }

// Sync mirrors a directory change onto the opposite pane. oppositeCwd
// is the opposite pane's current directory and oppositeStack is its
// navigation history (appended to on a forward move, popped on
// PreviousDir); both are owned by the caller and mutated in place.
//
// A failure to check whether the opposite path exists is logged and
// returns without altering sync-browsing state, per spec.
func (c *Coordinator) Sync(ctx context.Context, opposite fsys.FS, oppositeCwd string, oppositeStack *[]string, dest Destination) error {
	if !c.enabled {
		return nil
	}

	target, ok := c.resolveTarget(oppositeCwd, oppositeStack, dest)
	if !ok {
		return nil
	}

	exists, err := opposite.Exists(ctx, target)
	if err != nil {
		log.WithError(err).Warnf("failed to check existence of %s, leaving sync browsing untouched", target)
		return nil
	}

	if exists {
		if _, err := opposite.ChangeDir(ctx, target); err != nil {
			return err
		}
		if dest.Kind == PreviousDir {
			*oppositeStack = (*oppositeStack)[:len(*oppositeStack)-1]
		} else {
			*oppositeStack = append(*oppositeStack, oppositeCwd)
		}
		return nil
	}

	if c.confirm == nil || !c.confirm(target) {
		log.Warnf("opposite directory %s does not exist, disabling sync browsing", target)
		c.Disable()
		return nil
	}

	if err := opposite.CreateDir(ctx, target, fsys.Mode{}); err != nil {
		return err
	}
	return c.Sync(ctx, opposite, oppositeCwd, oppositeStack, dest)
}

func (c *Coordinator) resolveTarget(oppositeCwd string, oppositeStack *[]string, dest Destination) (string, bool) {
	switch dest.Kind {
	case Path:
		return path.Join(oppositeCwd, dest.Name), true
	case ParentDir:
		return path.Dir(oppositeCwd), true
	case PreviousDir:
		if len(*oppositeStack) == 0 {
			return "", false
		}
		return (*oppositeStack)[len(*oppositeStack)-1], true
	default:
		return "", false
	}
}
