package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"shokucho.jp/portal/internal/apperr"
	"shokucho.jp/portal/internal/coords"
	"shokucho.jp/portal/internal/core"
	"shokucho.jp/portal/internal/dxfexport"
	"shokucho.jp/portal/internal/imaging"
	"shokucho.jp/portal/internal/nav"
	"shokucho.jp/portal/internal/units"
	"shokucho.jp/portal/internal/validation"
)

// multipartMemory is how much of a multipart upload is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

type APIHandler struct {
	units          *units.Converter
	exporter       *dxfexport.Exporter
	images         *imaging.Converter
	forumService   *core.ForumService
	validator      *validation.Validator
	maxUploadBytes int64
	logger         zerolog.Logger
}

func NewAPIHandler(
	uc *units.Converter,
	exp *dxfexport.Exporter,
	ic *imaging.Converter,
	fs *core.ForumService,
	v *validation.Validator,
	maxUploadBytes int64,
	logger zerolog.Logger,
) *APIHandler {
	return &APIHandler{
		units:          uc,
		exporter:       exp,
		images:         ic,
		forumService:   fs,
		validator:      v,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

type NavResponse struct {
	AppName string     `json:"app_name"`
	Nav     []nav.Item `json:"nav"`
	Pages   []nav.Page `json:"pages"`
}

func (h *APIHandler) NavHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NavResponse{AppName: nav.AppName, Nav: nav.Menu(), Pages: nav.Pages()}, h.logger)
}

// PageHandler returns the frame (title, menu, current entry) of one page.
func (h *APIHandler) PageHandler(w http.ResponseWriter, r *http.Request) {
	ctx, err := nav.Context(nav.Target(chi.URLParam(r, "page")))
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, ctx, h.logger)
}

type CategoryUnits struct {
	Category units.Category `json:"category"`
	Units    []units.Unit   `json:"units"`
}

type UnitsResponse struct {
	Categories []CategoryUnits   `json:"categories"`
	Materials  []units.Material  `json:"materials"`
	Directions []units.Direction `json:"directions"`
}

// UnitsHandler lists what the conversion form can offer.
func (h *APIHandler) UnitsHandler(w http.ResponseWriter, r *http.Request) {
	resp := UnitsResponse{
		Materials:  h.units.Materials(),
		Directions: []units.Direction{units.VolumeToMass, units.MassToVolume},
	}
	for _, c := range units.Categories {
		resp.Categories = append(resp.Categories, CategoryUnits{Category: c, Units: h.units.Units(c)})
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// ConvertHandler converts a value from form fields.
func (h *APIHandler) ConvertHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apperr.Wrap(err, apperr.CodeValidation, "invalid form body"), h.logger)
		return
	}

	mode := units.Mode(r.PostFormValue("mode"))
	if mode == "" {
		mode = units.ModeUnit
	}
	req := units.Request{
		Mode:        mode,
		Category:    units.Category(r.PostFormValue("category")),
		FromUnit:    r.PostFormValue("from_unit"),
		ToUnit:      r.PostFormValue("to_unit"),
		Value:       r.PostFormValue("value"),
		Direction:   units.Direction(r.PostFormValue("direction")),
		MaterialKey: r.PostFormValue("material"),
	}

	result, err := h.units.Convert(req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// DXFHandler parses pasted coordinates and returns a DXF download.
func (h *APIHandler) DXFHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apperr.Wrap(err, apperr.CodeValidation, "invalid form body"), h.logger)
		return
	}

	parsed := coords.Parse(r.PostFormValue("coordinates"))
	job, err := dxfexport.NewJob(parsed.Points, dxfexport.Options{
		LayerName: r.PostFormValue("layer_name"),
		ShapeKind: r.PostFormValue("shape_kind"),
		Radius:    r.PostFormValue("radius"),
		Filename:  r.PostFormValue("filename"),
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && len(parsed.Skipped) > 0 {
			err = appErr.WithDetails(map[string]any{"skipped": parsed.Skipped})
		}
		writeError(w, err, h.logger)
		return
	}

	data, err := h.exporter.Export(job)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	w.Header().Set("X-Job-ID", job.ID)
	w.Header().Set("X-Skipped-Lines", strconv.Itoa(len(parsed.Skipped)))
	w.Header().Set("X-Radius-Defaulted", strconv.FormatBool(job.RadiusDefaulted))
	writeAttachment(w, job.Filename, dxfexport.ContentType, data)
}

// ImagesHandler converts uploaded images to JPEG. One result is sent as is,
// several as a ZIP.
func (h *APIHandler) ImagesHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperr.Newf(apperr.CodePayloadTooLarge, "upload exceeds %s", formatBytes(tooLarge.Limit)), h.logger)
			return
		}
		writeError(w, apperr.Wrap(err, apperr.CodeValidation, "expected a multipart upload"), h.logger)
		return
	}
	defer r.MultipartForm.RemoveAll()

	// "heic_file" is the single-file field of older forms.
	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["heic_file"]...)
	if len(headers) == 0 {
		writeError(w, apperr.ValidationWithDetails("no files uploaded", map[string]string{"files": "is required"}), h.logger)
		return
	}

	sources := make([]imaging.Source, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			writeError(w, apperr.Wrap(err, apperr.CodeInternal, "failed to read upload"), h.logger)
			return
		}
		sources = append(sources, imaging.Source{Name: fh.Filename, Data: data})
	}

	batch, err := h.images.ConvertImages(sources)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	w.Header().Set("X-Converted-Count", strconv.Itoa(batch.Converted()))
	w.Header().Set("X-Skipped-Count", strconv.Itoa(len(batch.Skipped)))

	if batch.Converted() == 1 {
		out := batch.Outputs[0]
		writeAttachment(w, out.Name, imaging.ContentTypeJPEG, out.Data)
		return
	}

	archive, err := batch.Archive()
	if err != nil {
		writeError(w, apperr.Wrap(err, apperr.CodeInternal, "failed to build archive"), h.logger)
		return
	}
	writeAttachment(w, imaging.ArchiveName, imaging.ContentTypeZIP, archive)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// formatBytes renders a byte limit in the largest whole unit.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return strconv.FormatInt(n>>20, 10) + " MB"
	case n >= 1<<10 && n%(1<<10) == 0:
		return strconv.FormatInt(n>>10, 10) + " KB"
	default:
		return strconv.FormatInt(n, 10) + " bytes"
	}
}
