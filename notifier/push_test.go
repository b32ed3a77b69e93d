package notifier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lesgoski/dealengine/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushClientSendSetsHeaders(t *testing.T) {
	var gotTitle, gotClick, gotTags, gotPriority, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotClick = r.Header.Get("Click")
		gotTags = r.Header.Get("Tags")
		gotPriority = r.Header.Get("Priority")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := notifier.NewPushClient(srv.URL, 100, 10)
	err := c.Send(context.Background(), "topic1", "title", "http://click", "tag1", "high", "body text")
	require.NoError(t, err)

	assert.Equal(t, "title", gotTitle)
	assert.Equal(t, "http://click", gotClick)
	assert.Equal(t, "tag1", gotTags)
	assert.Equal(t, "high", gotPriority)
	assert.Equal(t, "body text", gotBody)
}

func TestPushClientNonOKIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := notifier.NewPushClient(srv.URL, 100, 10)
	err := c.Send(context.Background(), "topic1", "title", "", "", "", "body")
	assert.Error(t, err)
}
