// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/olegiv/wellness-site/internal/backend"
	"github.com/olegiv/wellness-site/internal/media"
	"github.com/olegiv/wellness-site/internal/model"
)

const videoEntity = "video"

type videoRecords = Manager[model.Video, model.VideoInput, model.VideoPatch]

// VideoManager manages testimonial videos and the stored files behind
// upload-type videos. A stored file exists exactly while an upload-type
// row points at it; cleanup of replaced files is best effort.
type VideoManager struct {
	records *videoRecords
	storage backend.Storage
	bucket  string
	opts    Options
	logger  *slog.Logger
}

// NewVideoManager creates the video manager over the videos bucket.
func NewVideoManager(db backend.Database, storage backend.Storage, opts Options) *VideoManager {
	opts = opts.withDefaults()
	return &VideoManager{
		records: NewManager[model.Video, model.VideoInput, model.VideoPatch](db, backend.TableVideos, videoEntity, opts),
		storage: storage,
		bucket:  backend.BucketVideos,
		opts:    opts,
		logger:  opts.Logger.With("category", "storage", "bucket", backend.BucketVideos),
	}
}

// Refresh reloads every video.
func (v *VideoManager) Refresh(ctx context.Context) error { return v.records.Refresh(ctx) }

// List returns the cached videos, newest first.
func (v *VideoManager) List() []model.Video { return v.records.List() }

// Get returns the cached video with id.
func (v *VideoManager) Get(id string) (model.Video, bool) { return v.records.Get(id) }

// Snapshot returns the cache with its loading and saving flags.
func (v *VideoManager) Snapshot() Snapshot[model.Video] { return v.records.Snapshot() }

// Add creates a video. A url-type video stores the given URL and never
// touches storage. An upload-type video stores file first and the row
// second; if the row cannot be saved the file is removed again.
func (v *VideoManager) Add(ctx context.Context, in model.VideoInput, file *media.File) (model.Video, error) {
	var zero model.Video
	in = in.Normalize()

	if in.Type != model.VideoTypeUpload {
		if file != nil {
			return zero, model.NewValidationError("file", "Files can only be attached to upload videos")
		}
		return v.records.Create(ctx, in)
	}

	in.URL = ""
	if err := errors.Join(in.Validate(), media.ValidateFile(file)); err != nil {
		return zero, err
	}
	if in.Duration == nil {
		if d, ok := media.DetectDuration(file); ok {
			in.Duration = &d
		}
	}

	stored, err := v.upload(ctx, file)
	if err != nil {
		return zero, err
	}
	in.URL = v.storage.PublicURL(v.bucket, stored)

	row, err := backend.Encode(in)
	if err != nil {
		v.removeObject(ctx, stored, "encode failed")
		return zero, err
	}
	rec, err := v.records.insertRow(ctx, row)
	if err != nil {
		v.removeObject(ctx, stored, "insert failed")
		return zero, err
	}
	return rec, nil
}

// Update changes a video. With a new file on an upload-type video the old
// file is removed, the new one stored and the row pointed at it. Without a
// file the stored file and URL stay as they are. Switching an upload video
// to a URL removes the old file once the row has been updated.
func (v *VideoManager) Update(ctx context.Context, id string, patch model.VideoPatch, file *media.File) (model.Video, error) {
	var zero model.Video
	patch = patch.Normalize()
	if err := patch.Validate(); err != nil {
		return zero, err
	}
	if file != nil {
		if err := media.ValidateFile(file); err != nil {
			return zero, err
		}
	}

	current, err := v.records.Fetch(ctx, id)
	if err != nil {
		return zero, err
	}
	target := current.Type
	if patch.Type != nil {
		target = *patch.Type
	}

	switch target {
	case model.VideoTypeUpload:
		return v.updateUpload(ctx, current, patch, file)
	default:
		return v.updateURL(ctx, current, patch, file)
	}
}

func (v *VideoManager) updateUpload(ctx context.Context, current model.Video, patch model.VideoPatch, file *media.File) (model.Video, error) {
	var zero model.Video
	// The URL of an upload video is always derived from its stored file.
	patch.URL = nil

	if file == nil {
		if !current.IsUpload() {
			return zero, model.NewValidationError("file", media.MsgNoFile)
		}
		return v.patchRow(ctx, current.ID, patch)
	}

	if err := v.probe(ctx); err != nil {
		return zero, err
	}
	if current.IsUpload() {
		v.removeURL(ctx, current.URL, "replaced by new upload")
	}
	if patch.Duration == nil {
		if d, ok := media.DetectDuration(file); ok {
			patch.Duration = &d
		}
	}

	stored, err := v.store(ctx, file)
	if err != nil {
		return zero, err
	}
	u := v.storage.PublicURL(v.bucket, stored)
	t := model.VideoTypeUpload
	patch.URL, patch.Type = &u, &t

	rec, err := v.patchRow(ctx, current.ID, patch)
	if err != nil {
		v.removeObject(ctx, stored, "update failed")
		return zero, err
	}
	return rec, nil
}

func (v *VideoManager) updateURL(ctx context.Context, current model.Video, patch model.VideoPatch, file *media.File) (model.Video, error) {
	var zero model.Video
	if file != nil {
		return zero, model.NewValidationError("file", "Files can only be attached to upload videos")
	}
	if current.IsUpload() && patch.URL == nil {
		return zero, model.NewValidationError("url", "Video URL is required")
	}

	rec, err := v.patchRow(ctx, current.ID, patch)
	if err != nil {
		return zero, err
	}
	if current.IsUpload() {
		v.removeURL(ctx, current.URL, "switched to external URL")
	}
	return rec, nil
}

func (v *VideoManager) patchRow(ctx context.Context, id string, patch model.VideoPatch) (model.Video, error) {
	row, err := backend.Encode(patch)
	if err != nil {
		return model.Video{}, err
	}
	if len(row) == 0 {
		return model.Video{}, model.NewValidationError("", "Nothing to update")
	}
	return v.records.updateRow(ctx, id, row)
}

// Delete removes an upload video's stored file before deleting its row,
// so a failed row delete never leaves the file behind unnoticed.
func (v *VideoManager) Delete(ctx context.Context, id string) error {
	current, err := v.records.Fetch(ctx, id)
	if err != nil {
		return err
	}
	if current.IsUpload() {
		v.removeURL(ctx, current.URL, "video deleted")
	}
	return v.records.Delete(ctx, id)
}

// SweepOrphans removes stored files older than minAge that no upload
// video points at. It returns how many files were removed.
func (v *VideoManager) SweepOrphans(ctx context.Context, minAge time.Duration) (int, error) {
	objects, err := v.storage.List(ctx, v.bucket, "")
	if err != nil {
		return 0, remote(videoEntity, "sweep", err)
	}
	uploads, err := v.records.fetch(ctx, backend.Query{Filter: map[string]string{"type": string(model.VideoTypeUpload)}})
	if err != nil {
		return 0, err
	}

	referenced := make(map[string]bool, len(uploads))
	for _, u := range uploads {
		if p := v.pathFromURL(u.URL); p != "" {
			referenced[p] = true
		}
	}

	cutoff := v.opts.Now().Add(-minAge)
	var orphans []string
	for _, o := range objects {
		if !referenced[o.Name] && o.UpdatedAt.Before(cutoff) {
			orphans = append(orphans, o.Name)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	if err := v.storage.Remove(ctx, v.bucket, orphans...); err != nil {
		v.recordCleanupFailure()
		return 0, remote(videoEntity, "sweep", err)
	}
	v.logger.Info("removed orphaned video files", "count", len(orphans))
	if v.opts.Recorder != nil {
		v.opts.Recorder.RecordOrphansRemoved(len(orphans))
	}
	return len(orphans), nil
}

// upload checks the bucket and stores file.
func (v *VideoManager) upload(ctx context.Context, file *media.File) (string, error) {
	if err := v.probe(ctx); err != nil {
		return "", err
	}
	return v.store(ctx, file)
}

func (v *VideoManager) store(ctx context.Context, file *media.File) (string, error) {
	path := media.StoragePath(v.opts.Now(), file.Name)
	body := media.LimitBody(file.Body, v.opts.MaxUploadSize)
	start := v.opts.Now()
	stored, err := v.storage.Upload(ctx, v.bucket, path, body, file.MimeType())
	if v.opts.Recorder != nil {
		v.opts.Recorder.RecordContentOp(videoEntity, "upload", v.opts.Now().Sub(start), err)
	}
	if body.Exceeded() {
		v.logger.Warn("video upload ran past the size limit", "path", path, "declared_size", file.Size)
		if err == nil {
			v.removeObject(ctx, stored, "upload too large")
		}
		return "", model.NewValidationError("file", media.MsgTooLarge)
	}
	if err != nil {
		v.logger.Warn("video upload failed", "path", path, "error", err)
		return "", remote(videoEntity, "upload", err)
	}
	v.logger.Info("video uploaded", "path", stored, "size", file.Size)
	return stored, nil
}

// probe lists the bucket. Authorization failures are ordinary rejections;
// anything else means storage is misconfigured.
func (v *VideoManager) probe(ctx context.Context) error {
	_, err := v.storage.List(ctx, v.bucket, "")
	if err == nil {
		return nil
	}
	switch backend.CodeOf(err) {
	case backend.CodeUnauthorized, backend.CodeForbidden:
		return remote(videoEntity, "upload", err)
	}
	v.logger.Error("video storage bucket is unreachable", "error", err)
	return &ConfigurationError{Bucket: v.bucket, Err: err}
}

func (v *VideoManager) removeURL(ctx context.Context, publicURL, reason string) {
	path := v.pathFromURL(publicURL)
	if path == "" {
		v.logger.Warn("cannot derive storage path from video URL", "url", publicURL, "reason", reason)
		v.recordCleanupFailure()
		return
	}
	v.removeObject(ctx, path, reason)
}

// removeObject deletes one stored file. Failures are logged and counted only.
func (v *VideoManager) removeObject(ctx context.Context, path, reason string) {
	if err := v.storage.Remove(ctx, v.bucket, path); err != nil {
		v.logger.Warn("failed to remove stored video", "path", path, "reason", reason, "error", err)
		v.recordCleanupFailure()
		return
	}
	v.logger.Info("removed stored video", "path", path, "reason", reason)
}

func (v *VideoManager) recordCleanupFailure() {
	if v.opts.Recorder != nil {
		v.opts.Recorder.RecordCleanupFailure(v.bucket)
	}
}

// pathFromURL recovers the object path from a public URL.
func (v *VideoManager) pathFromURL(publicURL string) string {
	if prefix := v.storage.PublicURL(v.bucket, ""); prefix != "" && strings.HasPrefix(publicURL, prefix) {
		return unescape(strings.TrimPrefix(publicURL, prefix))
	}

	u, err := url.Parse(publicURL)
	if err != nil {
		return ""
	}
	marker := "/" + v.bucket + "/"
	i := strings.LastIndex(u.Path, marker)
	if i < 0 {
		return ""
	}
	return strings.TrimPrefix(u.Path[i+len(marker):], "/")
}

func unescape(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if s, err := url.PathUnescape(p); err == nil {
		return s
	}
	return p
}
