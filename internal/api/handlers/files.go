package handlers

import (
	"errors"
	"net/http"
	"path"

	"filepanel/internal/apperrors"
	"filepanel/internal/files"

	"github.com/gin-gonic/gin"
)

// FilesHandler exposes the file-operation collaborator. Every route here
// sits behind RequireAuth plus a RequirePermission stage; by the time a
// handler runs the caller is already authorized for the operation.
type FilesHandler struct {
	files files.Manager
}

func NewFilesHandler(manager files.Manager) *FilesHandler {
	return &FilesHandler{files: manager}
}

type ListFilesRequest struct {
	Path string `json:"path"`
}

type CreateDirRequest struct {
	Name       string `json:"name" binding:"required"`
	CurrentDir string `json:"currentDir"`
}

// Path lists bind with min=1: a present-but-empty array passes a bare
// required check and must not reach the handlers.
type DeleteFilesRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

type RenameFilesRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
	Name  string   `json:"name" binding:"required"`
}

type MoveFilesRequest struct {
	Paths   []string `json:"paths" binding:"required,min=1"`
	MoveDir string   `json:"moveDir" binding:"required"`
}

type ArchiveFilesRequest struct {
	Paths      []string `json:"paths" binding:"required,min=1"`
	CurrentDir string   `json:"currentDir"`
	Name       string   `json:"name"`
}

func (h *FilesHandler) List(c *gin.Context) {
	var req ListFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	infos, err := h.files.List(req.Path)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": infos})
}

func (h *FilesHandler) CreateDir(c *gin.Context) {
	var req CreateDirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.files.CreateDir(req.CurrentDir, req.Name); err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Folder created"})
}

func (h *FilesHandler) Delete(c *gin.Context) {
	var req DeleteFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.files.Delete(req.Paths); err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Files deleted"})
}

func (h *FilesHandler) Rename(c *gin.Context) {
	var req RenameFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.files.Rename(req.Paths[0], req.Name); err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Renamed"})
}

func (h *FilesHandler) Move(c *gin.Context) {
	var req MoveFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.files.Move(req.Paths, req.MoveDir); err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Moved"})
}

func (h *FilesHandler) Archive(c *gin.Context) {
	var req ArchiveFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	archivePath, err := h.files.Archive(req.Paths, req.CurrentDir, req.Name)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archive": archivePath})
}

// Upload accepts multipart form files under the "file" field, saved into
// the "dir" field's directory.
func (h *FilesHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload", "details": err.Error()})
		return
	}

	dir := c.PostForm("dir")
	uploads := form.File["file"]
	if len(uploads) == 0 {
		c.Error(apperrors.NewGeneral("No files in upload"))
		c.Abort()
		return
	}

	saved := make([]string, 0, len(uploads))
	for _, fh := range uploads {
		src, err := fh.Open()
		if err != nil {
			h.fileError(c, err)
			return
		}
		err = h.files.Save(dir, fh.Filename, src)
		src.Close()
		if err != nil {
			h.fileError(c, err)
			return
		}
		saved = append(saved, path.Join("/", dir, fh.Filename))
	}
	c.JSON(http.StatusOK, gin.H{"uploaded": saved})
}

// searchResultLimit caps how many matches one query returns, so a broad
// search cannot walk the whole tree back to the client.
const searchResultLimit = 30

// Search recursively matches entry names under the query's path. The path
// also drives the permission stage, so a caller only searches where they
// can read.
func (h *FilesHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.Error(apperrors.NewGeneral("Search query is required"))
		c.Abort()
		return
	}

	results, err := h.files.Search(c.Query("path"), q, searchResultLimit)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Download streams one file as an attachment. The path comes from the
// query string, which is also what the permission stage checked.
func (h *FilesHandler) Download(c *gin.Context) {
	p := c.Query("path")
	if p == "" {
		c.Error(apperrors.NewGeneral("path is required"))
		c.Abort()
		return
	}

	local, err := h.files.Resolve(p)
	if err != nil {
		h.fileError(c, err)
		return
	}
	c.FileAttachment(local, path.Base(p))
}

// fileError maps collaborator failures to client responses without leaking
// local filesystem detail.
func (h *FilesHandler) fileError(c *gin.Context, err error) {
	if errors.Is(err, files.ErrPathEscapesRoot) {
		c.Error(apperrors.NewGeneralWithCode(http.StatusForbidden, "Invalid path"))
	} else {
		c.Error(apperrors.NewGeneral("File operation failed"))
	}
	c.Abort()
}
