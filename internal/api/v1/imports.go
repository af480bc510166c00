package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/importer"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/excel"
)

// previewSampleRows lignes d'exemple renvoyées par feuille pour l'écran de correspondance
const previewSampleRows = 5

// SessionResponse session d'import sans le classeur brut
type SessionResponse struct {
	*model.ImportSession
	Sheets []model.SheetSummary `json:"sheets"`
}

func sessionResponse(sess *model.ImportSession) SessionResponse {
	view := *sess
	sheets := []model.SheetSummary{}
	if sess.Workbook != nil {
		sheets = excel.Summaries(sess.Workbook, previewSampleRows)
	}
	view.Workbook = nil
	return SessionResponse{ImportSession: &view, Sheets: sheets}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code, msg := classify(err)
	if code == CodeInternal {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	errorResponse(c, code, msg)
}

// AnalyzeImport reçoit le fichier et propose une correspondance
// POST /api/imports (multipart, champ "file")
func (h *Handler) AnalyzeImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		errorResponse(c, CodeBadRequest, "Aucun fichier reçu")
		return
	}
	if fileHeader.Size > h.maxUpload {
		errorResponse(c, CodeFileTooLarge, fmt.Sprintf("Fichier trop volumineux (%d Mo maximum)", h.maxUpload>>20))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		errorResponse(c, CodeBadRequest, "Impossible de lire le fichier envoyé")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		errorResponse(c, CodeBadRequest, "Impossible de lire le fichier envoyé")
		return
	}
	if int64(len(data)) > h.maxUpload {
		errorResponse(c, CodeFileTooLarge, fmt.Sprintf("Fichier trop volumineux (%d Mo maximum)", h.maxUpload>>20))
		return
	}

	sess, err := h.imports.Analyze(c.Request.Context(), importer.AnalyzeRequest{
		OwnerID:  ownerID(c),
		FileName: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		code, msg := classify(err)
		if sess == nil {
			h.fail(c, err)
			return
		}
		if sess.LastError != "" {
			msg = sess.LastError
		}
		c.JSON(http.StatusOK, Response{Code: code, Message: msg, Data: sessionResponse(sess)})
		return
	}
	success(c, sessionResponse(sess))
}

// GetImport état de la session
// GET /api/imports/:id
func (h *Handler) GetImport(c *gin.Context) {
	sess, err := h.imports.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, sessionResponse(sess))
}

// DiscardImport ferme le dialogue
// DELETE /api/imports/:id
func (h *Handler) DiscardImport(c *gin.Context) {
	if err := h.imports.Discard(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	success(c, nil)
}

// UpdateMapping correspondance corrigée par l'utilisateur
// PUT /api/imports/:id/mapping
func (h *Handler) UpdateMapping(c *gin.Context) {
	var m model.ColumnMapping
	if err := c.ShouldBindJSON(&m); err != nil {
		errorResponse(c, CodeBadRequest, "Correspondance illisible")
		return
	}
	sess, err := h.imports.UpdateMapping(c.Request.Context(), ownerID(c), c.Param("id"), &m)
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, sessionResponse(sess))
}

// PreviewImport lignes normalisées, corrections et lignes écartées
// POST /api/imports/:id/preview
func (h *Handler) PreviewImport(c *gin.Context) {
	sess, err := h.imports.Preview(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, sessionResponse(sess))
}

// ConfirmImport enregistre les lignes (flux SSE)
// POST /api/imports/:id/confirm
func (h *Handler) ConfirmImport(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		errorResponse(c, CodeInternal, "Flux non supporté")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	progressChan := h.imports.ConfirmAsync(c.Request.Context(), ownerID(c), c.Param("id"))

	for event := range progressChan {
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}

		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

// ListImportLogs derniers imports
// GET /api/import-logs?limit=
func (h *Handler) ListImportLogs(c *gin.Context) {
	if h.logs == nil {
		success(c, []model.ImportLog{})
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			errorResponse(c, CodeBadRequest, "Paramètre limit invalide")
			return
		}
		limit = n
	}
	logs, err := h.logs.ListImportLogs(c.Request.Context(), ownerID(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, logs)
}
