package sftp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veeso-termscp/termscp-core/fsys"
)

func TestNewRequiresAnAuthMethod(t *testing.T) {
	_, err := New(Params{Host: "example.com"})
	require.Error(t, err)
	assert.Equal(t, fsys.KindAuthFailed, fsys.KindOf(err))
}

func TestNewDefaultsPort(t *testing.T) {
	f, err := New(Params{Host: "example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 22, f.params.Port)
}

func TestOperationsRejectedWhenNotConnected(t *testing.T) {
	f, err := New(Params{Host: "example.com", Password: "secret"})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = f.Pwd(ctx)
	require.Error(t, err)
	assert.Equal(t, fsys.KindNotConnected, fsys.KindOf(err))

	_, err = f.ListDir(ctx, "/tmp")
	require.Error(t, err)
	assert.Equal(t, fsys.KindNotConnected, fsys.KindOf(err))
}

func TestCopyIsUnsupported(t *testing.T) {
	f, err := New(Params{Host: "example.com", Password: "secret"})
	require.NoError(t, err)
	err = f.Copy(context.Background(), "/a", "/b")
	require.Error(t, err)
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))
}

func TestModeRoundTrip(t *testing.T) {
	m := fsys.Mode{Known: true,
		Owner: fsys.Permissions{Read: true, Write: true, Execute: true},
		Group: fsys.Permissions{Read: true},
		All:   fsys.Permissions{Read: true},
	}
	osMode := modeToOS(m)
	back := modeFromOS(osMode)
	assert.Equal(t, m, back)
}

func TestParamsPasswordMissing(t *testing.T) {
	assert.True(t, Params{Host: "example.com"}.PasswordMissing())
	assert.False(t, Params{Host: "example.com", Password: "x"}.PasswordMissing())
	assert.False(t, Params{Host: "example.com", KeyUseAgent: true}.PasswordMissing())

	p := Params{Host: "example.com"}
	p.SetDefaultSecret("injected")
	assert.Equal(t, "injected", p.Password)
}
