package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/report"
	"github.com/andresuchdata/pharmstock/backend-go/internal/service"
	apperrors "github.com/andresuchdata/pharmstock/backend-go/pkg/errors"
	"github.com/andresuchdata/pharmstock/backend-go/pkg/logger"
)

type CatalogueHandler struct {
	service   *service.CatalogueService
	uploadDir string
	maxUpload int64
}

// NewCatalogueHandler serves svc. Uploaded files are saved under uploadDir
// and each may weigh at most maxUpload bytes.
func NewCatalogueHandler(svc *service.CatalogueService, uploadDir string, maxUpload int64) *CatalogueHandler {
	return &CatalogueHandler{service: svc, uploadDir: uploadDir, maxUpload: maxUpload}
}

func errorResponse(c *gin.Context, err error) {
	status := apperrors.StatusCode(err)
	body := gin.H{"error": err.Error()}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		body["code"] = appErr.Code
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	}
	if status >= http.StatusInternalServerError {
		logger.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		body["error"] = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// Import saves the uploaded files and imports them in upload order.
func (h *CatalogueHandler) Import(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		errorResponse(c, apperrors.BadRequest("invalid form data"))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		errorResponse(c, apperrors.BadRequest("no files provided"))
		return
	}

	dir := filepath.Join(h.uploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		errorResponse(c, apperrors.Internal(err.Error()))
		return
	}

	uploaded := make([]*domain.UploadedFile, 0, len(files))
	for i, file := range files {
		if h.maxUpload > 0 && file.Size > h.maxUpload {
			errorResponse(c, apperrors.BadRequest(fmt.Sprintf("%s exceeds the upload limit", file.Filename)))
			return
		}
		// Same-named files in one request must not overwrite each other.
		path := filepath.Join(dir, strconv.Itoa(i), filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, path); err != nil {
			logger.Log.Error().Err(err).Str("filename", file.Filename).Msg("failed to save uploaded file")
			errorResponse(c, apperrors.Internal("failed to save "+file.Filename))
			return
		}
		uploaded = append(uploaded, &domain.UploadedFile{Filename: file.Filename, Path: path, Size: file.Size})
	}

	paths := make([]string, len(uploaded))
	for i, f := range uploaded {
		paths[i] = f.Path
	}
	outcomes, err := h.service.ImportFiles(c.Request.Context(), paths)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes, "staged": h.service.Staged()})
}

func (h *CatalogueHandler) Staged(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Staged())
}

func (h *CatalogueHandler) Imports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.service.Imports(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CatalogueHandler) Recompute(c *gin.Context) {
	summary, err := h.service.Recompute(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *CatalogueHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		errorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogueHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// splitValues accepts both ?k=a&k=b and ?k=a,b.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *CatalogueHandler) Products(c *gin.Context) {
	var filter domain.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		errorResponse(c, apperrors.BadRequest(err.Error()))
		return
	}
	filter.Alerts = filter.Alerts[:0]
	for _, v := range splitValues(c.QueryArray("alert")) {
		level, ok := domain.ParseAlertLevel(v)
		if !ok {
			errorResponse(c, apperrors.Validation(map[string]string{"alert": "unknown level " + v}))
			return
		}
		filter.Alerts = append(filter.Alerts, level)
	}
	filter.ABC = strings.ToUpper(filter.ABC)
	filter.XYZ = strings.ToUpper(filter.XYZ)

	page, err := h.service.Products(c.Request.Context(), filter)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *CatalogueHandler) Product(c *gin.Context) {
	p, err := h.service.Product(c.Param("name"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogueHandler) Unmatched(c *gin.Context) {
	approximate, _ := strconv.ParseBool(c.DefaultQuery("approximate", "false"))
	list, err := h.service.Unmatched(approximate)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CatalogueHandler) Generics(c *gin.Context) {
	list, err := h.service.Generics(c.Query("molecule"), c.Query("dosage"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CatalogueHandler) MoleculeGroups(c *gin.Context) {
	groups, err := h.service.MoleculeGroups()
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *CatalogueHandler) CategoryGroups(c *gin.Context) {
	groups, err := h.service.CategoryGroups()
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *CatalogueHandler) Suppliers(c *gin.Context) {
	suppliers, err := h.service.Suppliers()
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

func (h *CatalogueHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Settings())
}

func (h *CatalogueHandler) UpdateSettings(c *gin.Context) {
	var next domain.Settings
	if err := c.ShouldBindJSON(&next); err != nil {
		errorResponse(c, apperrors.BadRequest(err.Error()))
		return
	}
	saved, err := h.service.UpdateSettings(c.Request.Context(), next)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *CatalogueHandler) Corrections(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Corrections())
}

func (h *CatalogueHandler) ApplyCorrection(c *gin.Context) {
	var req service.CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, apperrors.BadRequest(err.Error()))
		return
	}
	correction, err := h.service.ApplyCorrection(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, correction)
}

func (h *CatalogueHandler) RemoveCorrection(c *gin.Context) {
	if err := h.service.RemoveCorrection(c.Request.Context(), c.Param("name")); err != nil {
		errorResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func sendWorkbook(c *gin.Context, exp *service.Export) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exp.Name))
	c.Data(http.StatusOK, report.ContentType, exp.Body)
}

func (h *CatalogueHandler) PurchaseReport(c *gin.Context) {
	exp, err := h.service.PurchaseReport(domain.ParsePurchaseScope(c.Query("filter")))
	if err != nil {
		errorResponse(c, err)
		return
	}
	sendWorkbook(c, exp)
}

func (h *CatalogueHandler) FullReport(c *gin.Context) {
	exp, err := h.service.FullReport()
	if err != nil {
		errorResponse(c, err)
		return
	}
	sendWorkbook(c, exp)
}
