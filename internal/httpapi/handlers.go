package httpapi

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibecoding/demo2apk/internal/appid"
	"github.com/vibecoding/demo2apk/internal/apperrors"
	"github.com/vibecoding/demo2apk/internal/buildmetrics"
	"github.com/vibecoding/demo2apk/internal/queue"
	"github.com/vibecoding/demo2apk/internal/storage"
)

const maxIconSize = 2 * 1024 * 1024

var defaultAppName = map[string]string{"html": "MyVibeApp", "zip": "MyReactApp"}

// externalStatus maps a job's internal queue.State (and its DisplayStatus
// collapse of completed+failed-result to "failed") to the external status
// vocabulary: "pending", "active", "completed", "failed".
var externalStatus = map[queue.State]string{
	queue.StateWaiting:   "pending",
	queue.StateActive:    "active",
	queue.StateCompleted: "completed",
	queue.StateFailed:    "failed",
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, MetaResponse{
		Name:    "demo2apk",
		Version: "1",
		Kinds:   []string{"html", "zip"},
	})
}

// handleUpload returns a handler for one of the two kind-specific
// admission endpoints, per spec.md §4.1's upload contract.
func (s *Server) handleUpload(kind string) http.HandlerFunc {
	requiredExt := map[string][]string{"html": {".html", ".htm"}, "zip": {".zip"}}[kind]

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(s.Config.MaxFileSize + (1 << 20)); err != nil {
			writeAppError(w, apperrors.Validation("request body too large or malformed"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeAppError(w, apperrors.Validation("missing required \"file\" field"))
			return
		}
		defer file.Close()

		if !hasAnyExt(header.Filename, requiredExt) {
			writeAppError(w, apperrors.Validation(fmt.Sprintf("file must have one of these extensions: %s", strings.Join(requiredExt, ", "))))
			return
		}
		if header.Size > s.Config.MaxFileSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: http.StatusText(http.StatusRequestEntityTooLarge), Message: "file exceeds maximum allowed size"})
			return
		}

		appName := strings.TrimSpace(r.FormValue("appName"))
		if appName == "" {
			appName = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
		}
		if appName == "" {
			appName = defaultAppName[kind]
		}

		appID := strings.TrimSpace(r.FormValue("appId"))
		if appID == "" {
			appID = appid.Derive(appName)
		}

		taskID, err := newTaskID()
		if err != nil {
			writeAppError(w, apperrors.Internal("generating task id", err))
			return
		}

		uploadDir, err := s.Roots.UploadDir(taskID)
		if err != nil {
			writeAppError(w, apperrors.Internal("preparing upload workspace", err))
			return
		}

		uploadPath := filepath.Join(uploadDir, "upload"+filepath.Ext(header.Filename))
		if err := saveMultipartFile(file, uploadPath); err != nil {
			writeAppError(w, apperrors.Internal("saving upload", err))
			return
		}

		var iconPath string
		if iconFile, iconHeader, err := r.FormFile("icon"); err == nil {
			defer iconFile.Close()
			iconPath, err = s.saveIcon(uploadDir, iconFile, iconHeader)
			if err != nil {
				writeAppError(w, err)
				return
			}
		}

		task := queue.Task{
			ID:         taskID,
			Kind:       queue.Kind(kind),
			AppName:    appName,
			AppID:      appID,
			UploadPath: uploadPath,
			IconPath:   iconPath,
			CreatedAt:  time.Now(),
			OutputDir:  s.Roots.BuildsDir,
		}

		job, _, err := s.Queue.Enqueue(r.Context(), task)
		if err != nil {
			writeAppError(w, apperrors.Internal("enqueueing job", err))
			return
		}
		buildmetrics.JobsEnqueued.WithLabelValues(kind).Inc()

		writeJSON(w, http.StatusOK, AdmitResponse{
			TaskID:      job.ID(),
			Status:      externalStatus[job.State],
			StatusURL:   "/api/build/" + job.ID() + "/status",
			DownloadURL: "/api/build/" + job.ID() + "/download",
		})
	}
}

func (s *Server) saveIcon(uploadDir string, file multipart.File, header *multipart.FileHeader) (string, error) {
	if !hasAnyExt(header.Filename, []string{".png", ".jpg", ".jpeg"}) {
		return "", apperrors.Validation("icon must be .png, .jpg, or .jpeg")
	}
	if header.Size > maxIconSize {
		return "", apperrors.Validation("icon exceeds 2MB limit")
	}
	iconPath := filepath.Join(uploadDir, "icon"+filepath.Ext(header.Filename))
	if err := saveMultipartFile(file, iconPath); err != nil {
		return "", apperrors.Internal("saving icon", err)
	}
	return iconPath, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	job, err := s.Queue.Get(r.Context(), taskID)
	if err != nil {
		writeAppError(w, apperrors.Internal("reading job", err))
		return
	}
	if job == nil {
		writeAppError(w, apperrors.NotFound("no build found for this task id"))
		return
	}

	resp := StatusResponse{
		TaskID:         job.ID(),
		Status:         externalStatus[job.DisplayStatus()],
		FileName:       filepath.Base(job.Task.UploadPath),
		RetentionHours: s.Config.FileRetentionHours,
	}
	if job.State == queue.StateWaiting || job.State == queue.StateActive {
		resp.Progress = &ProgressPayload{Message: job.Progress.Message, Percent: job.DisplayPercent()}
	}
	if job.State == queue.StateWaiting {
		position, total, err := s.Queue.QueuePosition(r.Context(), taskID)
		if err == nil {
			resp.QueuePosition = position
			resp.QueueTotal = total
		}
	}
	if job.Result != nil {
		resp.Result = &ResultPayload{Success: job.Result.Success, Duration: job.Result.Duration.Seconds()}
		if job.Result.Success {
			resp.DownloadURL = "/api/build/" + job.ID() + "/download"
			resp.ApkSize = job.Result.ArtifactSize
			if job.FinishedAt != nil {
				resp.ExpiresAt = job.FinishedAt.Add(time.Duration(s.Config.FileRetentionHours) * time.Hour).UTC().Format(time.RFC3339)
			}
		} else {
			resp.Error = job.Result.Error
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	job, err := s.Queue.Get(r.Context(), taskID)
	if err != nil {
		writeAppError(w, apperrors.Internal("reading job", err))
		return
	}
	if job == nil {
		writeAppError(w, apperrors.NotFound("no build found for this task id"))
		return
	}
	if job.State != queue.StateCompleted || job.Result == nil {
		writeAppError(w, apperrors.Validation("build is not yet complete"))
		return
	}
	if !job.Result.Success {
		writeAppError(w, apperrors.Validation("build failed, nothing to download"))
		return
	}

	f, err := os.Open(job.Result.ArtifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeAppError(w, apperrors.NotFound("artifact has expired or was removed"))
			return
		}
		writeAppError(w, apperrors.Internal("opening artifact", err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeAppError(w, apperrors.Internal("stating artifact", err))
		return
	}

	filename := job.Task.AppName + ".apk"
	w.Header().Set("Content-Type", "application/vnd.android.package-archive")
	w.Header().Set("Content-Disposition", contentDisposition(filename))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	job, err := s.Queue.Delete(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, queue.ErrActiveJob) {
			writeAppError(w, apperrors.Validation("job is currently building and cannot be cancelled"))
			return
		}
		writeAppError(w, apperrors.Internal("deleting job", err))
		return
	}
	if job == nil {
		writeAppError(w, apperrors.NotFound("no build found for this task id"))
		return
	}

	storage.RemoveUploadWorkspace(s.Roots, taskID)
	if job.Result != nil && job.Result.ArtifactPath != "" {
		os.Remove(job.Result.ArtifactPath)
	}

	writeJSON(w, http.StatusOK, CancelResponse{TaskID: taskID, Deleted: true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("internal error", err)
	}
	writeJSON(w, appErr.Kind.HTTPStatus(), ErrorResponse{
		Error:      appErr.Kind.ErrorLabel(),
		Message:    appErr.Message,
		RetryAfter: appErr.RetryAfterSeconds,
	})
}

func hasAnyExt(filename string, exts []string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func saveMultipartFile(src multipart.File, dstPath string) error {
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

// newTaskID generates a 12-character URL-safe token, per spec.md §3.
func newTaskID() (string, error) {
	b := make([]byte, 9) // 9 bytes -> 12 base64 chars, no padding
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// contentDisposition builds the RFC 5987 dual-form header spec.md
// requires: an ASCII fallback (non-ASCII replaced by "_") plus a UTF-8
// filename* form.
func contentDisposition(filename string) string {
	ascii := toASCIIFallback(filename)
	encoded := url.PathEscape(filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, encoded)
}

func toASCIIFallback(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > 126 || r < 32 || r == '"' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
