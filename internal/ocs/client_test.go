package ocs_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexjbarnes/nextcloud-links/internal/credentials"
	apperrors "github.com/alexjbarnes/nextcloud-links/internal/errors"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs/ocstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(srv *ocstest.Server) *ocs.Client {
	return ocs.NewClient(srv.Client(), 0)
}

// --- request shape ---

func TestListShares_SendsPathResharesAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, ocs.SharesPath, r.URL.Path)
		assert.Equal(t, "/PROYECTOS/p/a b.mov", r.URL.Query().Get("path"))
		assert.Equal(t, "true", r.URL.Query().Get("reshares"))
		assert.Equal(t, "true", r.Header.Get("OCS-APIRequest"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)

		w.Write([]byte(`{"ocs":{"meta":{"statuscode":200},"data":[]}}`))
	}))
	defer srv.Close()

	c := ocs.NewClient(srv.Client(), 0)
	shares, err := c.ListShares(context.Background(), credentials.Credentials{BaseURL: srv.URL + "/", Username: "u", Password: "p"}, "/PROYECTOS/p/a b.mov")
	require.NoError(t, err)
	assert.Empty(t, shares)
}

func TestListAllShares_SendsNoPath(t *testing.T) {
	srv := ocstest.New(t)
	_, err := newClient(srv).ListAllShares(context.Background(), srv.Credentials())
	require.NoError(t, err)

	require.Len(t, srv.Lists(), 1)
	assert.False(t, srv.Lists()[0].Has("path"))
}

func TestCreateShare_SendsForm(t *testing.T) {
	srv := ocstest.New(t)
	_, err := newClient(srv).CreateShare(context.Background(), srv.Credentials(), ocs.CreateRequest{
		Path:        "/R/p/a.mov",
		ShareType:   ocs.ShareTypePublicLink,
		Permissions: 1,
		ExpireDate:  "2030-01-02",
	})
	require.NoError(t, err)

	require.Len(t, srv.Posts(), 1)
	form := srv.Posts()[0]
	assert.Equal(t, "/R/p/a.mov", form.Get("path"))
	assert.Equal(t, "3", form.Get("shareType"))
	assert.Equal(t, "1", form.Get("permissions"))
	assert.Equal(t, "2030-01-02", form.Get("expireDate"))
}

func TestCreateShare_OmitsEmptyExpireDate(t *testing.T) {
	srv := ocstest.New(t)
	_, err := newClient(srv).CreateShare(context.Background(), srv.Credentials(), ocs.CreateRequest{
		Path: "/R/a", ShareType: ocs.ShareTypePublicLink, Permissions: 15,
	})
	require.NoError(t, err)
	assert.False(t, srv.Posts()[0].Has("expireDate"))
}

// --- response parsing ---

func TestListShares_JSON(t *testing.T) {
	srv := ocstest.New(t)
	srv.AddShare(ocs.Share{ShareType: 3, Permissions: 1, Path: "/R/a.mov"})
	srv.AddShare(ocs.Share{ShareType: 3, Permissions: 15, Path: "/R/a.mov", Expiration: "2030-05-01"})
	srv.AddShare(ocs.Share{ShareType: 0, Permissions: 31, Path: "/R/a.mov"})
	srv.AddShare(ocs.Share{ShareType: 3, Permissions: 1, Path: "/R/other.mov"})

	shares, err := newClient(srv).ListShares(context.Background(), srv.Credentials(), "/R/a.mov")
	require.NoError(t, err)
	require.Len(t, shares, 3)

	assert.Equal(t, "1", shares[0].ID)
	assert.Equal(t, 3, shares[0].ShareType)
	assert.Equal(t, "", shares[0].Expiration)
	assert.Equal(t, srv.URL+"/s/tok1", shares[0].URL)
	assert.Equal(t, "2030-05-01", shares[1].Expiration, "time suffix should be dropped")
	assert.Equal(t, 0, shares[2].ShareType)
}

func TestListShares_XML(t *testing.T) {
	srv := ocstest.New(t)
	srv.Format = ocstest.FormatXML
	srv.AddShare(ocs.Share{ShareType: 3, Permissions: 1, Path: "/R/a.mov"})
	srv.AddShare(ocs.Share{ShareType: 3, Permissions: 15, Path: "/R/a.mov", Expiration: "2030-05-01"})

	shares, err := newClient(srv).ListShares(context.Background(), srv.Credentials(), "/R/a.mov")
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, 1, shares[0].Permissions)
	assert.Equal(t, "", shares[0].Expiration)
	assert.Equal(t, "2030-05-01", shares[1].Expiration)
	assert.Equal(t, srv.URL+"/s/tok2", shares[1].URL)
}

func TestListShares_XMLEmpty(t *testing.T) {
	srv := ocstest.New(t)
	srv.Format = ocstest.FormatXML

	shares, err := newClient(srv).ListShares(context.Background(), srv.Credentials(), "/R/none")
	require.NoError(t, err)
	assert.Empty(t, shares)
}

func TestListShares_SingleObjectData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ocs":{"data":{"id":7,"share_type":3,"permissions":1,"expiration":null,"path":"/R/a","url":"https://x/s/abc"}}}`))
	}))
	defer srv.Close()

	shares, err := ocs.NewClient(srv.Client(), 0).ListShares(context.Background(), credentials.Credentials{BaseURL: srv.URL}, "/R/a")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "7", shares[0].ID)
	assert.Equal(t, "https://x/s/abc", shares[0].URL)
}

func TestListShares_MalformedBodyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ocs><data><element>`))
	}))
	defer srv.Close()

	_, err := ocs.NewClient(srv.Client(), 0).ListShares(context.Background(), credentials.Credentials{BaseURL: srv.URL}, "/R/a")
	assert.ErrorIs(t, err, apperrors.ErrParse)
}

func TestCreateShare_JSONURL(t *testing.T) {
	srv := ocstest.New(t)
	link, err := newClient(srv).CreateShare(context.Background(), srv.Credentials(), ocs.CreateRequest{Path: "/R/a", ShareType: 3, Permissions: 1})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/s/tok1", link)
}

func TestCreateShare_XMLURL(t *testing.T) {
	srv := ocstest.New(t)
	srv.CreateBody = `<?xml version="1.0"?><ocs><meta><status>ok</status><statuscode>200</statuscode></meta><data><id>9</id><url>https://x/s/def</url></data></ocs>`

	link, err := newClient(srv).CreateShare(context.Background(), srv.Credentials(), ocs.CreateRequest{Path: "/R/a", ShareType: 3, Permissions: 1})
	require.NoError(t, err)
	assert.Equal(t, "https://x/s/def", link)
}

func TestCreateShare_NoURLIsUnparseable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"json without url", `{"ocs":{"data":{"id":1}}}`},
		{"xml without url", `<ocs><data><id>1</id></data></ocs>`},
		{"garbage", `<<<not xml`},
		{"html", `<html><body>Login</body>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := ocstest.New(t)
			srv.CreateBody = tt.body

			_, err := newClient(srv).CreateShare(context.Background(), srv.Credentials(), ocs.CreateRequest{Path: "/R/a", ShareType: 3, Permissions: 1})
			assert.ErrorIs(t, err, apperrors.ErrUnparseableResponse)
		})
	}
}

// --- failures ---

func TestCreateShare_HTTPErrorStatus(t *testing.T) {
	srv := ocstest.New(t)
	srv.CreateStatus = http.StatusForbidden

	_, err := newClient(srv).CreateShare(context.Background(), srv.Credentials(), ocs.CreateRequest{Path: "/R/a", ShareType: 3, Permissions: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRemoteAPI)
	assert.Equal(t, http.StatusForbidden, ocs.StatusCode(err))
	assert.Contains(t, err.Error(), "creation failed")
}

func TestListShares_Unauthorized(t *testing.T) {
	srv := ocstest.New(t)
	creds := srv.Credentials()
	creds.Password = "wrong"

	_, err := newClient(srv).ListShares(context.Background(), creds, "/R/a")
	assert.ErrorIs(t, err, apperrors.ErrRemoteAPI)
	assert.Equal(t, http.StatusUnauthorized, ocs.StatusCode(err))
}

func TestDo_MetaFailureOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ocs":{"meta":{"status":"failure","statuscode":404,"message":"Wrong path, file/folder doesn't exist"},"data":[]}}`))
	}))
	defer srv.Close()

	_, err := ocs.NewClient(srv.Client(), 0).ListShares(context.Background(), credentials.Credentials{BaseURL: srv.URL}, "/R/missing")
	assert.ErrorIs(t, err, apperrors.ErrRemoteAPI)
	assert.Equal(t, http.StatusNotFound, ocs.StatusCode(err))
}

func TestDo_XMLMetaFailureOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><ocs><meta><status>failure</status><statuscode>997</statuscode></meta><data/></ocs>`))
	}))
	defer srv.Close()

	_, err := ocs.NewClient(srv.Client(), 0).ListAllShares(context.Background(), credentials.Credentials{BaseURL: srv.URL})
	assert.Equal(t, 997, ocs.StatusCode(err))
}

func TestDo_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := ocs.NewClient(nil, time.Second).ListShares(context.Background(), credentials.Credentials{BaseURL: base, Username: "u", Password: "p"}, "/R/a")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConnection)
}

func TestDo_TimeoutIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := ocs.NewClient(nil, 50*time.Millisecond).ListAllShares(context.Background(), credentials.Credentials{BaseURL: srv.URL})
	assert.ErrorIs(t, err, apperrors.ErrConnection)
}

func TestDo_ErrorBodyTruncatedAndSanitized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom\x1b[31m" + strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	_, err := ocs.NewClient(srv.Client(), 0).ListAllShares(context.Background(), credentials.Credentials{BaseURL: srv.URL})

	var apiErr *ocs.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.LessOrEqual(t, len(apiErr.Body), 256)
	assert.NotContains(t, apiErr.Body, "\x1b")
	assert.True(t, strings.HasPrefix(apiErr.Body, "boom?"))
}

func TestNewClient_BlocksCrossHostRedirect(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("credentials must not be sent to another host")
	}))
	defer other.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, strings.Replace(other.URL, "127.0.0.1", "localhost", 1)+ocs.SharesPath, http.StatusFound)
	}))
	defer srv.Close()

	_, err := ocs.NewClient(nil, time.Second).ListAllShares(context.Background(), credentials.Credentials{BaseURL: srv.URL, Username: "u", Password: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect to different host blocked")
}
