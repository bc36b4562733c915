package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/shindakun/diuportal/internal/app"
	"github.com/shindakun/diuportal/internal/auth"
	"go.uber.org/zap"
)

const maxUploadMemory = 8 << 20

func (h *Handlers) materials() app.Materials {
	if h.drive == nil {
		return nil
	}
	return h.drive.Drive()
}

// Materials lists the course materials folder, or explains that Drive is
// not configured
func (h *Handlers) Materials(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.GetSessionFromContext(r.Context())
	data := TemplateData{
		Title:     "Course Materials",
		CanUpload: session.User != nil && session.User.CanManageMaterials(),
	}

	store := h.materials()
	if store == nil {
		h.render(w, r, http.StatusOK, pageMaterials, data)
		return
	}
	data.DriveEnabled = true

	files, err := store.ListFiles(r.Context())
	if err != nil {
		h.logger.Error("failed to list materials", zap.Error(err))
		data.Flash = errorFlash("Course materials could not be loaded from Google Drive. Please try again later.")
	}
	data.Files = files

	h.render(w, r, http.StatusOK, pageMaterials, data)
}

// UploadMaterial stores the posted file in the materials folder
// (instructors and admins only)
func (h *Handlers) UploadMaterial(w http.ResponseWriter, r *http.Request) {
	store := h.materials()
	if store == nil {
		h.NotFound(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.flash(w, r, auth.FlashError, "That file is too large to upload.")
		} else {
			h.flash(w, r, auth.FlashError, "Choose a file to upload.")
		}
		http.Redirect(w, r, "/materials", http.StatusSeeOther)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.flash(w, r, auth.FlashError, "Choose a file to upload.")
		http.Redirect(w, r, "/materials", http.StatusSeeOther)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(name))
	}

	uploaded, err := store.Upload(r.Context(), name, mimeType, file)
	if err != nil {
		h.uploadResult("error")
		h.logger.Error("failed to upload material",
			zap.String("name", name),
			zap.Error(err))
		h.flash(w, r, auth.FlashError, "Uploading "+name+" to Google Drive failed. Please try again.")
		http.Redirect(w, r, "/materials", http.StatusSeeOther)
		return
	}

	h.uploadResult("success")
	h.flash(w, r, auth.FlashSuccess, uploaded.Name+" was added to the course materials.")
	http.Redirect(w, r, "/materials", http.StatusSeeOther)
}

func (h *Handlers) uploadResult(result string) {
	if h.metrics != nil {
		h.metrics.DriveUploads.WithLabelValues(result).Inc()
	}
}
