// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/media"
	"github.com/olegiv/wellness-site/internal/model"
	"github.com/olegiv/wellness-site/internal/testutil"
)

const publicVideos = "http://localhost:8080/storage/v1/object/public/videos/"

// videoForm builds a multipart body. A nil file omits the file part.
func videoForm(t *testing.T, fields map[string]string, filename, contentType string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) sendForm(t *testing.T, method, path string, body *bytes.Buffer, ct string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(t, method, path, body)
	req.Header.Set("Content-Type", ct)
	return e.send(req, cookie)
}

func objectName(t *testing.T, url string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(url, publicVideos), "url %q", url)
	return strings.TrimPrefix(url, publicVideos)
}

func TestUploadVideoLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, testutil.AdminEmail)

	body, ct := videoForm(t, map[string]string{"title": "My Story"}, "My Story.mp4", "video/mp4", []byte("not really a video"))
	rec := env.sendForm(t, http.MethodPost, "/api/admin/videos", body, ct, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	v := decodeData[model.Video](t, rec)
	assert.Equal(t, model.VideoTypeUpload, v.Type)
	first := objectName(t, v.URL)
	assert.True(t, strings.HasSuffix(first, "-My_Story.mp4"), first)
	assert.True(t, env.backend.ObjectExists(t, backend.BucketVideos, first))

	env.backend.Clock.Advance(time.Second)
	body, ct = videoForm(t, map[string]string{"duration": "1:30"}, "second.webm", "video/webm", []byte("another"))
	rec = env.sendForm(t, http.MethodPatch, "/api/admin/videos/"+v.ID, body, ct, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decodeData[model.Video](t, rec)
	second := objectName(t, updated.URL)
	assert.NotEqual(t, first, second)
	require.NotNil(t, updated.Duration)
	assert.Equal(t, "1:30", *updated.Duration)
	assert.False(t, env.backend.ObjectExists(t, backend.BucketVideos, first), "replaced object still stored")
	assert.True(t, env.backend.ObjectExists(t, backend.BucketVideos, second))

	r := env.do(t, http.MethodDelete, "/api/admin/videos/"+v.ID, nil, cookie)
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	assert.False(t, env.backend.ObjectExists(t, backend.BucketVideos, second))
	assert.Empty(t, env.videos.List())
}

func TestUploadVideoRejectsBadFile(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, testutil.AdminEmail)

	body, ct := videoForm(t, map[string]string{"title": "Pic"}, "pic.png", "image/png", []byte("png"))
	rec := env.sendForm(t, http.MethodPost, "/api/admin/videos", body, ct, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, media.MsgInvalidType, decodeEnvelope(t, rec).Error)
	assert.Empty(t, env.videos.List())
}

func TestUploadVideoWithoutFile(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, testutil.AdminEmail)

	body, ct := videoForm(t, map[string]string{"title": "Story", "type": "upload"}, "", "", nil)
	rec := env.sendForm(t, http.MethodPost, "/api/admin/videos", body, ct, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, media.MsgNoFile, decodeEnvelope(t, rec).Error)
}

func TestURLVideoJSON(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, testutil.AdminEmail)

	rec := env.do(t, http.MethodPost, "/api/admin/videos", map[string]string{
		"title": "Interview",
		"type":  "url",
		"url":   "https://www.youtube.com/embed/abc123",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decodeData[model.Video](t, rec)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", v.URL)

	rec = env.do(t, http.MethodGet, "/api/videos/"+v.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/admin/videos/"+v.ID, map[string]string{"url": "not a url"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/videos", nil, nil)
	list := decodeData[[]model.Video](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", list[0].URL)
}

func TestVideoStorageUnavailable(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, testutil.AdminEmail)
	require.NoError(t, os.RemoveAll(env.backend.StorageDir))

	body, ct := videoForm(t, map[string]string{"title": "Story"}, "story.mp4", "video/mp4", []byte("data"))
	rec := env.sendForm(t, http.MethodPost, "/api/admin/videos", body, ct, cookie)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
}
