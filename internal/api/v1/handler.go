package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/exporter"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/importer"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/stats"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/wizard"
)

// OwnerHeader identifiant du propriétaire, posé par la passerelle d'authentification
const OwnerHeader = "X-Owner-ID"

const ownerKey = "ownerID"

// ImportLogLister historique des imports
type ImportLogLister interface {
	ListImportLogs(ctx context.Context, ownerID string, limit int) ([]model.ImportLog, error)
}

// StatusInfo backends actifs, exposés par /status
type StatusInfo struct {
	StorageDriver     string `json:"storageDriver"`
	InferenceProvider string `json:"inferenceProvider"`
	SessionBackend    string `json:"sessionBackend"`
	ArchiveBackend    string `json:"archiveBackend"`
}

// Deps dépendances du handler
type Deps struct {
	Imports        *importer.Coordinator
	Stats          *stats.Service
	Wizards        *wizard.Manager
	Exporter       *exporter.Exporter
	Logs           ImportLogLister
	MaxUploadBytes int64
	Status         StatusInfo
}

// Handler API v1
type Handler struct {
	imports   *importer.Coordinator
	stats     *stats.Service
	wizards   *wizard.Manager
	exporter  *exporter.Exporter
	logs      ImportLogLister
	maxUpload int64
	status    StatusInfo
	started   time.Time
}

// NewHandler crée le handler
func NewHandler(d Deps) *Handler {
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		imports:   d.Imports,
		stats:     d.Stats,
		wizards:   d.Wizards,
		exporter:  d.Exporter,
		logs:      d.Logs,
		maxUpload: maxUpload,
		status:    d.Status,
		started:   time.Now(),
	}
}

// RegisterRoutes enregistre les routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)
	router.GET("/metrics", h.ListMetrics)
	router.GET("/wizards", h.ListWizards)

	owned := router.Group("", requireOwner())

	// import de statistiques
	owned.POST("/imports", h.AnalyzeImport)
	owned.GET("/imports/:id", h.GetImport)
	owned.DELETE("/imports/:id", h.DiscardImport)
	owned.PUT("/imports/:id/mapping", h.UpdateMapping)
	owned.POST("/imports/:id/preview", h.PreviewImport)
	owned.POST("/imports/:id/confirm", h.ConfirmImport)
	owned.GET("/import-logs", h.ListImportLogs)

	// statistiques
	owned.GET("/stats", h.ListStats)
	owned.GET("/stats/summary", h.GetSummary)
	owned.GET("/stats/export", h.ExportStats)

	// parcours guidés
	owned.GET("/wizards/:kind/draft", h.GetDraft)
	owned.PUT("/wizards/:kind/draft", h.SaveDraft)
	owned.DELETE("/wizards/:kind/draft", h.ResetDraft)
	owned.POST("/wizards/:kind/next", h.NextStep)
	owned.POST("/wizards/:kind/back", h.PreviousStep)
}

// Response enveloppe commune
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(OwnerHeader))
		if owner == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: CodeUnauthenticated, Message: "Connexion requise"})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// GetStatus état du service
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	success(c, gin.H{
		"status":         "ok",
		"uptimeSec":      int(time.Since(h.started).Seconds()),
		"metricsVersion": model.MetricsVersion,
		"backends":       h.status,
	})
}

// ListMetrics énumération des métriques
// GET /api/metrics
func (h *Handler) ListMetrics(c *gin.Context) {
	success(c, gin.H{
		"version": model.MetricsVersion,
		"metrics": model.Metrics(),
	})
}
