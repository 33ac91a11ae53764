package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/skelutten/studymaster-pwa-sub001/internal/audit"
	"github.com/skelutten/studymaster-pwa-sub001/internal/entities"
	"github.com/skelutten/studymaster-pwa-sub001/internal/importer"
)

// DefaultMaxUploadBytes caps deck archive uploads (64 MB).
const DefaultMaxUploadBytes = 64 * 1024 * 1024

// importState tracks one import on behalf of HTTP clients. The pipeline
// goroutine never touches it; a dedicated consumer goroutine copies
// messages from the import's channel into this snapshot.
type importState struct {
	mu       sync.RWMutex
	filename string
	latest   importer.Progress
	terminal importer.Message
	handle   *importer.Import
}

// ImportController manages deck imports started over HTTP.
type ImportController struct {
	mu      sync.RWMutex
	imports map[string]*importState

	auditService     *audit.Service
	defaultChunkSize int
	maxUploadBytes   int64
}

// NewImportController creates the controller from router configuration.
func NewImportController(cfg RouterConfig) *ImportController {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &ImportController{
		imports:          make(map[string]*importState),
		auditService:     cfg.AuditService,
		defaultChunkSize: cfg.DefaultChunkSize,
		maxUploadBytes:   maxUpload,
	}
}

// Create handles POST /api/imports: it accepts a multipart deck archive
// upload and starts one import in its own goroutine.
func (ic *ImportController) Create(c *gin.Context) {
	file, header, err := c.Request.FormFile("deck")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deck file not provided"})
		return
	}
	defer file.Close()

	if header.Size > ic.maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large (max %d MB)", ic.maxUploadBytes/(1024*1024)),
		})
		return
	}

	limitedReader := io.LimitReader(file, ic.maxUploadBytes+1)
	buf, err := io.ReadAll(limitedReader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}
	if int64(len(buf)) > ic.maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large (max %d MB)", ic.maxUploadBytes/(1024*1024)),
		})
		return
	}

	opts := importer.Options{ChunkSize: ic.defaultChunkSize}
	if raw := c.PostForm("chunk_size"); raw != "" {
		chunkSize, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_size must be an integer"})
			return
		}
		opts.ChunkSize = chunkSize
	}

	// The import outlives this request; it is cancelled explicitly via
	// the cancel endpoint, not by the request context.
	handle, err := importer.Start(context.Background(), buf, opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state := &importState{
		filename: header.Filename,
		handle:   handle,
	}

	ic.mu.Lock()
	ic.imports[handle.ID()] = state
	ic.mu.Unlock()

	go ic.consume(state)

	c.JSON(http.StatusAccepted, gin.H{"import_id": handle.ID()})
}

// Get handles GET /api/imports/:id: it returns the latest progress
// snapshot, or the terminal outcome once the import finished.
func (ic *ImportController) Get(c *gin.Context) {
	state, ok := ic.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "import not found"})
		return
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	response := gin.H{
		"import_id": state.handle.ID(),
		"filename":  state.filename,
		"progress":  state.latest,
	}

	switch terminal := state.terminal.(type) {
	case importer.Complete:
		response["status"] = entities.PhaseCompleted
		response["summary"] = terminal.Summary
	case importer.Failed:
		response["status"] = entities.PhaseFailed
		response["error"] = terminal.Error
		response["recoverable"] = terminal.Recoverable
	case importer.Cancelled:
		response["status"] = entities.PhaseCancelled
		response["message"] = terminal.Message
	default:
		response["status"] = state.latest.Status
	}

	c.JSON(http.StatusOK, response)
}

// Cancel handles POST /api/imports/:id/cancel: it requests cooperative
// cancellation of the matching in-flight import.
func (ic *ImportController) Cancel(c *gin.Context) {
	state, ok := ic.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "import not found"})
		return
	}

	state.handle.Cancel()
	c.JSON(http.StatusAccepted, gin.H{"import_id": state.handle.ID(), "cancelling": true})
}

func (ic *ImportController) lookup(id string) (*importState, bool) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	state, ok := ic.imports[id]
	return state, ok
}

// consume drains one import's message channel, keeping the latest
// snapshot for polling clients and recording the terminal outcome.
func (ic *ImportController) consume(state *importState) {
	for message := range state.handle.Messages() {
		switch msg := message.(type) {
		case importer.Progress:
			state.mu.Lock()
			state.latest = msg
			state.mu.Unlock()
		default:
			state.mu.Lock()
			state.terminal = msg
			state.mu.Unlock()
		}
	}

	ic.logOutcome(state)
}

func (ic *ImportController) logOutcome(state *importState) {
	if ic.auditService == nil {
		return
	}

	state.mu.RLock()
	terminal := state.terminal
	filename := state.filename
	state.mu.RUnlock()

	switch msg := terminal.(type) {
	case importer.Complete:
		summary := msg.Summary
		description := fmt.Sprintf(
			"Imported %s: %d models, %d cards, %d media files",
			filename, summary.ModelsProcessed, summary.CardsProcessed, summary.MediaProcessed,
		)
		status := entities.AuditStatusSuccess
		ic.auditService.LogImport(description, status,
			summary.ModelsProcessed, summary.CardsProcessed, summary.MediaProcessed,
			summary.ErrorsEncountered, "")
	case importer.Failed:
		ic.auditService.LogImport(
			fmt.Sprintf("Import of %s failed", filename),
			entities.AuditStatusFailed, 0, 0, 0, 0, msg.Error)
	case importer.Cancelled:
		ic.auditService.LogImport(
			fmt.Sprintf("Import of %s cancelled", filename),
			entities.AuditStatusCancelled, 0, 0, 0, 0, "")
	}
}
