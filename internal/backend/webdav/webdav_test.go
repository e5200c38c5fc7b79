package webdav

import (
	"context"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veeso-termscp/termscp-core/fsys"
)

func TestNewParsesEndpoint(t *testing.T) {
	f, err := New(Params{Endpoint: "https://dav.example.com/remote.php/webdav/"})
	require.NoError(t, err)
	assert.Equal(t, "dav.example.com", f.base.Host)
}

func TestOperationsRejectedWhenNotConnected(t *testing.T) {
	f, err := New(Params{Endpoint: "https://dav.example.com/"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.Pwd(ctx)
	require.Error(t, err)
	assert.Equal(t, fsys.KindNotConnected, fsys.KindOf(err))
}

func TestSetStatAndSymlinkUnsupported(t *testing.T) {
	f, err := New(Params{Endpoint: "https://dav.example.com/"})
	require.NoError(t, err)
	ctx := context.Background()

	err = f.SetStat(ctx, "/a", fsys.MetadataDelta{})
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))

	err = f.Symlink(ctx, "/a", "/b")
	assert.Equal(t, fsys.KindUnsupportedFeature, fsys.KindOf(err))
}

func TestParseMultistatusCollection(t *testing.T) {
	body := `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/remote.php/webdav/docs/</d:href>
    <d:propstat>
      <d:prop>
        <d:displayname>docs</d:displayname>
        <d:resourcetype><d:collection/></d:resourcetype>
      </d:prop>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/remote.php/webdav/notes.txt</d:href>
    <d:propstat>
      <d:prop>
        <d:displayname>notes.txt</d:displayname>
        <d:resourcetype/>
        <d:getcontentlength>42</d:getcontentlength>
        <d:getlastmodified>Tue, 19 Dec 2017 22:02:36 GMT</d:getlastmodified>
      </d:prop>
    </d:propstat>
  </d:response>
</d:multistatus>`
	var ms multistatus
	require.NoError(t, xml.Unmarshal([]byte(body), &ms))
	require.Len(t, ms.Responses, 2)
	assert.True(t, ms.Responses[0].isCollection())
	assert.False(t, ms.Responses[1].isCollection())
	assert.EqualValues(t, 42, ms.Responses[1].Prop.Size)
}

func TestParamsPasswordMissing(t *testing.T) {
	assert.True(t, Params{Endpoint: "https://example.com"}.PasswordMissing())
	p := Params{Endpoint: "https://example.com"}
	p.SetDefaultSecret("injected")
	assert.Equal(t, "injected", p.Password)
	assert.False(t, p.PasswordMissing())
}
