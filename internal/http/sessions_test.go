package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSession(t *testing.T, f *routerFixture) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, f.upload(t, "dune.txt", uploadText).Code)

	w := f.do(t, http.MethodPost, "/api/books/1/session", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotEmpty(t, response.SessionID)
	return response.SessionID
}

func TestOpenSession(t *testing.T) {
	t.Run("opens a session for an uploaded book", func(t *testing.T) {
		f := setupRouter(t)
		id := openSession(t, f)

		w := f.do(t, http.MethodGet, "/api/sessions/"+id+"/progress", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "global_percent")
	})

	t.Run("unknown book cannot be opened", func(t *testing.T) {
		f := setupRouter(t)
		w := f.do(t, http.MethodPost, "/api/books/42/session", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("unknown session id", func(t *testing.T) {
		f := setupRouter(t)
		w := f.do(t, http.MethodGet, "/api/sessions/00000000-0000-0000-0000-000000000000/progress", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		bad := f.do(t, http.MethodGet, "/api/sessions/not-a-uuid/progress", nil)
		assert.Equal(t, http.StatusBadRequest, bad.Code)
	})
}

func TestGoto(t *testing.T) {
	f := setupRouter(t)
	id := openSession(t, f)

	w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/goto", []byte(`{"token":"pos(0/5)"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	t.Run("malformed token", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/goto", []byte(`{"token":"not a token"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/goto", []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestScrub(t *testing.T) {
	f := setupRouter(t)
	id := openSession(t, f)

	// The index builds asynchronously; poll until the scrub lands.
	assert.Eventually(t, func() bool {
		w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/scrub", []byte(`{"chapter_percent":50}`))
		return w.Code == http.StatusOK
	}, testTimeout, testTick)

	t.Run("zero is a valid scrub target", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/sessions/"+id+"/scrub", []byte(`{"chapter_percent":0}`))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCloseSession(t *testing.T) {
	f := setupRouter(t)
	id := openSession(t, f)

	w := f.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	gone := f.do(t, http.MethodGet, "/api/sessions/"+id+"/progress", nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestHighlightLifecycle(t *testing.T) {
	f := setupRouter(t)
	id := openSession(t, f)

	body := []byte(`{"range_token":"pos(0/5-0/20)","text":"delicate care"}`)
	w := f.do(t, http.MethodPost, "/api/books/1/highlights", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"#facc15"`)

	list := f.do(t, http.MethodGet, "/api/books/1/highlights", nil)
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "delicate care")

	sync := f.do(t, http.MethodPost, "/api/sessions/"+id+"/highlights/sync", nil)
	assert.Equal(t, http.StatusOK, sync.Code)

	notes := f.do(t, http.MethodPatch, "/api/highlights/1/notes", []byte(`{"notes":"remember this"}`))
	assert.Equal(t, http.StatusOK, notes.Code)

	del := f.do(t, http.MethodDelete, "/api/highlights/1", nil)
	assert.Equal(t, http.StatusOK, del.Code)

	t.Run("malformed range token is rejected", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/books/1/highlights", []byte(`{"range_token":"garbage"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBookmarkLifecycle(t *testing.T) {
	f := setupRouter(t)
	require.Equal(t, http.StatusCreated, f.upload(t, "dune.txt", uploadText).Code)

	w := f.do(t, http.MethodPost, "/api/books/1/bookmarks", []byte(`{"token":"pos(0/10)","label":"opening"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	list := f.do(t, http.MethodGet, "/api/books/1/bookmarks", nil)
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "opening")

	del := f.do(t, http.MethodDelete, "/api/bookmarks/1", nil)
	assert.Equal(t, http.StatusOK, del.Code)
}

func TestSettings(t *testing.T) {
	f := setupRouter(t)

	w := f.do(t, http.MethodPut, "/api/settings", []byte(`{"key":"theme","value":"dark"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	get := f.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, http.StatusOK, get.Code)
	assert.Contains(t, get.Body.String(), `"dark"`)

	t.Run("unknown keys are rejected", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/settings", []byte(fmt.Sprintf(`{"key":%q,"value":"x"}`, "auth_password_hash")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
