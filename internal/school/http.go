package school

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"school-directory/internal/auth"
	"school-directory/internal/httputil"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

const (
	multipartMemory = 8 << 20
	formOverhead    = 1 << 20
)

type Handler struct {
	service        Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewHandler(service Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 2 * MaxImageSize
	}
	return &Handler{
		service:        service,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes mounts the listing publicly and puts creation behind requireSession.
func (h *Handler) RegisterRoutes(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Get("/api/schools", h.ListSchools)
	r.With(requireSession).Post("/api/schools", h.AddSchool)
}

type listingResponse struct {
	Listing
	Headline string `json:"headline"`
}

func (h *Handler) ListSchools(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to fetch schools", "error", err)
	}

	httputil.RespondWithJSON(w, http.StatusOK, listingResponse{
		Listing:  listing,
		Headline: listing.Headline(),
	})
}

func (h *Handler) AddSchool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	form, err := h.parseForm(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondWithJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
				"errors": FieldErrors{"image": message("image", "imagesize")},
			})
			return
		}
		h.logger.WarnContext(ctx, "invalid school form", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	submittedBy := ""
	if session, ok := auth.SessionFromContext(ctx); ok {
		submittedBy = session.Email
	}

	created, err := h.service.Submit(ctx, form, submittedBy)
	if err != nil {
		var fieldErrs FieldErrors
		if errors.As(err, &fieldErrs) {
			httputil.RespondWithJSON(w, http.StatusBadRequest, map[string]any{"errors": fieldErrs})
			return
		}

		h.logger.ErrorContext(ctx, "error adding school", "error", err)
		httputil.RespondWithNotification(w, http.StatusInternalServerError,
			httputil.Failure("Failed to add school. Please try again."), nil)
		return
	}

	h.logger.InfoContext(ctx, "school added", "school_id", created.ID, "submitted_by", submittedBy)
	httputil.RespondWithNotification(w, http.StatusCreated,
		httputil.Success("Success!", "School added successfully"),
		map[string]any{"school": created})
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return Form{}, err
		}
		if err := r.ParseForm(); err != nil {
			return Form{}, err
		}
	}

	form := Form{
		Name:    r.PostFormValue("name"),
		Address: r.PostFormValue("address"),
		City:    r.PostFormValue("city"),
		State:   r.PostFormValue("state"),
		Contact: r.PostFormValue("contact"),
		EmailID: r.PostFormValue("email_id"),
	}

	if r.MultipartForm == nil {
		return form, nil
	}
	for _, fh := range r.MultipartForm.File["image"] {
		img, err := readImage(fh)
		if err != nil {
			return Form{}, err
		}
		form.Images = append(form.Images, img)
	}
	return form, nil
}

// readImage loads the file and sniffs its type. Files over the size limit are
// not read; the schema rejects them by size alone.
func readImage(fh *multipart.FileHeader) (ImageFile, error) {
	img := ImageFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}
	if fh.Size > MaxImageSize {
		return img, nil
	}

	f, err := fh.Open()
	if err != nil {
		return ImageFile{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ImageFile{}, err
	}

	img.Data = data
	img.ContentType = strings.SplitN(mimetype.Detect(data).String(), ";", 2)[0]
	return img, nil
}
