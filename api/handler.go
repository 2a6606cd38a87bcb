// gen3dapi/api/handler.go
package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gen3dapi/config"
	"gen3dapi/job"

	"github.com/gin-gonic/gin"
)

// allowedExtensions guards uploads whose part carries no usable
// content type.
var allowedExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
}

type Handler struct {
	manager *job.Manager
	cfg     *config.Config
}

func NewHandler(m *job.Manager, cfg *config.Config) *Handler {
	return &Handler{manager: m, cfg: cfg}
}

func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "online",
		"service":    "3D Generation API",
		"version":    "1.0.0",
		"technology": h.cfg.Engine,
	})
}

// handleGenerate accepts a video upload and starts an asynchronous
// reconstruction job. Invalid input is rejected here, before any job
// record exists.
func (h *Handler) handleGenerate(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A video file upload is required"})
		return
	}

	if err := validateUpload(file, h.cfg.MaxUploadSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := job.NewID()
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".mp4"
	}

	if err := os.MkdirAll(h.cfg.UploadDir(), 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}
	videoPath := filepath.Join(h.cfg.UploadDir(), id+ext)
	if err := c.SaveUploadedFile(file, videoPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	j, err := h.manager.Submit(id, videoPath)
	if err != nil {
		os.Remove(videoPath)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to create job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"job_id":  j.ID,
		"message": "Generation started",
	})
}

func validateUpload(file *multipart.FileHeader, maxSize int64) error {
	if maxSize > 0 && file.Size > maxSize {
		return fmt.Errorf("upload of %d bytes exceeds the %d byte limit", file.Size, maxSize)
	}

	contentType := file.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "video/") {
		return nil
	}
	if allowedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		return nil
	}
	return fmt.Errorf("the file must be a video (mp4, mov or avi)")
}

func (h *Handler) handleJobStatus(c *gin.Context) {
	j, err := h.manager.Get(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	h.qualifyDownloadURL(c, &j)
	c.JSON(http.StatusOK, j)
}

func (h *Handler) handleListJobs(c *gin.Context) {
	jobs := h.manager.List()
	for i := range jobs {
		h.qualifyDownloadURL(c, &jobs[i])
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

func (h *Handler) handleDeleteJob(c *gin.Context) {
	err := h.manager.Delete(c.Param("jobId"))
	if errors.Is(err, job.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Job deleted"})
}

func (h *Handler) handleDownload(c *gin.Context) {
	path, err := h.manager.ArtifactPath(c.Param("filename"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// qualifyDownloadURL turns the stored relative locator into a full URL
// when a base is known.
func (h *Handler) qualifyDownloadURL(c *gin.Context, j *job.Job) {
	if j.DownloadURL == "" || strings.HasPrefix(j.DownloadURL, "http") {
		return
	}

	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	j.DownloadURL = strings.TrimSuffix(baseURL, "/") + j.DownloadURL
}
