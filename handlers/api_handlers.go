package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"estudiantes-gateway/gateway"
	"estudiantes-gateway/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// APIHandler holds the dependencies of the HTTP handlers
type APIHandler struct {
	Gateway *gateway.Gateway
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(g *gateway.Gateway) *APIHandler {
	return &APIHandler{
		Gateway: g,
	}
}

// Register mounts every route on r
func (h *APIHandler) Register(r gin.IRouter) {
	r.GET("/", RootHandler)
	r.GET("/ping", PingHandler)
	r.GET("/estudiantes", h.ListStudents)
	r.GET("/estudiantes/exportar", h.ExportStudents)
	r.POST("/agregar", h.AddStudent)
	r.POST("/importar", h.ImportStudents)
	r.PATCH("/editar", h.EditField)
	r.DELETE("/eliminar", h.ArchiveStudent)
	r.PATCH("/eliminar-campo", h.ClearField)
	r.GET("/historial", h.History)
}

// ListStudents handles GET /estudiantes
func (h *APIHandler) ListStudents(c *gin.Context) {
	pages, err := h.Gateway.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

// AddStudent handles POST /agregar
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req models.NewStudent
	if !bindJSON(c, &req, gateway.MsgCreateRequired) {
		return
	}

	id, err := h.Gateway.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Estudiante agregado correctamente", "id": id})
}

// EditField handles PATCH /editar
func (h *APIHandler) EditField(c *gin.Context) {
	var req models.FieldUpdate
	if !bindJSON(c, &req, gateway.MsgUpdateRequired) {
		return
	}

	if err := h.Gateway.PatchField(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Campo %s actualizado correctamente", req.Campo), "id": req.ID})
}

// ArchiveStudent handles DELETE /eliminar
func (h *APIHandler) ArchiveStudent(c *gin.Context) {
	var req models.RecordRef
	if !bindJSON(c, &req, gateway.MsgIDRequired) {
		return
	}

	if err := h.Gateway.Archive(c.Request.Context(), req.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Estudiante eliminado correctamente"})
}

// ClearField handles PATCH /eliminar-campo
func (h *APIHandler) ClearField(c *gin.Context) {
	var req models.FieldClear
	if !bindJSON(c, &req, gateway.MsgClearRequired) {
		return
	}

	if err := h.Gateway.ClearField(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Campo %s eliminado correctamente", req.Campo), "id": req.ID})
}

// ImportStudents handles POST /importar
func (h *APIHandler) ImportStudents(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		log.Printf("Error getting form file: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error al recibir el archivo: " + err.Error()})
		return
	}
	defer file.Close()

	log.Printf("Received file upload: %s", header.Filename)

	result, err := h.Gateway.ImportStudents(c.Request.Context(), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Importación completada",
		"importados": result.Imported,
		"omitidos":   result.Skipped,
		"errores":    result.Failed,
		"ids":        result.IDs,
	})
}

// ExportStudents handles GET /estudiantes/exportar
func (h *APIHandler) ExportStudents(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.Gateway.ExportStudents(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="estudiantes.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// History handles GET /historial
func (h *APIHandler) History(c *gin.Context) {
	limit := int64(defaultHistoryLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit debe ser un entero positivo."})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.Gateway.History(c.Request.Context(), limit)
	if err != nil {
		log.Printf("Error in History handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// RootHandler handles GET /
func RootHandler(c *gin.Context) {
	c.String(http.StatusOK, "¡API funcionando correctamente!")
}

// PingHandler handles GET /ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}

// bindJSON decodes the body into req. Missing required fields and an empty
// body both answer with missingMsg.
func bindJSON(c *gin.Context, req interface{}, missingMsg string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, io.EOF):
		c.JSON(http.StatusBadRequest, gin.H{"error": missingMsg})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cuerpo de solicitud inválido: " + err.Error()})
	}
	return false
}

// respondError maps gateway errors onto status codes
func respondError(c *gin.Context, err error) {
	var verr *gateway.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
		return
	}
	var uerr *gateway.UpstreamError
	if errors.As(err, &uerr) {
		log.Printf("Upstream %s failed on %s %s: %v", uerr.Op, c.Request.Method, c.Request.URL.Path, uerr.Err)
	} else {
		log.Printf("Error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
