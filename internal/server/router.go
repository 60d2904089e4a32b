package server

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxFileSize is the largest file that can be attached to an entry.
const MaxFileSize = 32 << 20

// App holds what the HTTP API serves.
type App struct {
	Organizations *service.OrganizationService
	Entries       *service.EntryService
	Backups       *service.EntryBackupService
	Verifier      auth.Verifier
	AllowedRoles  []string
	// Subscriptions serves the websocket endpoint.
	Subscriptions http.Handler
	// Docs serves the OpenAPI document, optional.
	Docs http.FileSystem
}

// NewRouter registers the API routes.
func NewRouter(app *App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestTimeMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if app.Docs != nil {
		router.StaticFS("/v1/docs", app.Docs)
	}
	if app.Subscriptions != nil {
		router.GET("/v1/ws", gin.WrapH(app.Subscriptions))
	}

	v1 := router.Group("/v1", auth.Authenticate(app.Verifier), auth.RequireRole(app.AllowedRoles...))
	h := &handler{app: app}
	setupOrganizationRoutes(v1, h)
	setupEntryRoutes(v1, h)

	return router
}

type handler struct {
	app *App
}

func setupOrganizationRoutes(v1 *gin.RouterGroup, h *handler) {
	rg := v1.Group("/organizations")
	rg.POST("", h.createOrganization)
	rg.GET("", h.listOrganizations)
	rg.GET("/:orgID", h.getOrganization)
	rg.POST("/:orgID/groups", h.createGroup)
	rg.GET("/:orgID/groups", h.listGroups)
	rg.GET("/:orgID/candidates", h.listCandidates)
	rg.GET("/:orgID/graph", h.getGraph)
	rg.GET("/:orgID/graph/projection", h.projectGraph)
}

func setupEntryRoutes(v1 *gin.RouterGroup, h *handler) {
	v1.POST("/groups/:groupID/entries", h.createEntry)
	v1.GET("/groups/:groupID/entries", h.listEntries)

	rg := v1.Group("/entries/:entryID")
	rg.GET("", h.getEntry)
	rg.PUT("", h.updateEntry)
	rg.DELETE("", h.deleteEntry)
	rg.GET("/backlinks", h.listBacklinks)
	rg.GET("/backups", h.listBackups)
	rg.GET("/backups/:version", h.getBackup)
	rg.POST("/backups/:version/restore", h.restoreBackup)
	rg.PUT("/file", h.attachFile)
	rg.GET("/file", h.openFile)
	rg.DELETE("/file", h.deleteFile)
}

func caller(c *gin.Context) *auth.Identity {
	id, _ := auth.Caller(c)
	return id
}

func (h *handler) createOrganization(c *gin.Context) {
	var req service.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	org, err := h.app.Organizations.CreateOrganization(c.Request.Context(), caller(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (h *handler) listOrganizations(c *gin.Context) {
	orgs, err := h.app.Organizations.ListOrganizations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, orgs)
}

func (h *handler) getOrganization(c *gin.Context) {
	org, err := h.app.Organizations.GetOrganization(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (h *handler) createGroup(c *gin.Context) {
	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.OrganizationID = c.Param("orgID")

	group, err := h.app.Organizations.CreateGroup(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, group)
}

func (h *handler) listGroups(c *gin.Context) {
	groups, err := h.app.Organizations.ListGroups(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, groups)
}

func (h *handler) listCandidates(c *gin.Context) {
	candidates, err := h.app.Entries.ListCandidates(c.Request.Context(), c.Param("orgID"), c.Query("exclude"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, candidates)
}

func (h *handler) getGraph(c *gin.Context) {
	entries, err := h.app.Entries.GetGraph(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *handler) projectGraph(c *gin.Context) {
	graph, err := h.app.Entries.ProjectGraph(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, graph)
}

func (h *handler) createEntry(c *gin.Context) {
	var req service.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.GroupID = c.Param("groupID")

	entry, err := h.app.Entries.CreateEntry(c.Request.Context(), caller(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *handler) listEntries(c *gin.Context) {
	entries, err := h.app.Entries.ListEntries(c.Request.Context(), c.Param("groupID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *handler) getEntry(c *gin.Context) {
	entry, err := h.app.Entries.GetEntry(c.Request.Context(), c.Param("entryID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *handler) updateEntry(c *gin.Context) {
	var req service.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.EntryID = c.Param("entryID")

	entry, err := h.app.Entries.UpdateEntry(c.Request.Context(), caller(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *handler) deleteEntry(c *gin.Context) {
	if err := h.app.Entries.DeleteEntry(c.Request.Context(), caller(c), c.Param("entryID")); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) listBacklinks(c *gin.Context) {
	backlinks, err := h.app.Entries.ListBacklinks(c.Request.Context(), c.Param("entryID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, backlinks)
}

func (h *handler) listBackups(c *gin.Context) {
	backups, err := h.app.Backups.ListEntryBackups(c.Request.Context(), c.Param("entryID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, backups)
}

func versionParam(c *gin.Context) (int64, bool) {
	version, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil || version < 1 {
		badRequest(c, "version must be a positive integer")
		return 0, false
	}
	return version, true
}

func (h *handler) getBackup(c *gin.Context) {
	version, ok := versionParam(c)
	if !ok {
		return
	}

	backup, err := h.app.Backups.GetEntryBackup(c.Request.Context(), c.Param("entryID"), version)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, backup)
}

func (h *handler) restoreBackup(c *gin.Context) {
	version, ok := versionParam(c)
	if !ok {
		return
	}

	entry, err := h.app.Backups.RestoreEntryBackup(c.Request.Context(), caller(c), c.Param("entryID"), version)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *handler) attachFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "expected a multipart form with a file field")
		return
	}
	if header.Size > MaxFileSize {
		badRequest(c, fmt.Sprintf("file is larger than %d bytes", MaxFileSize))
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize))
	if err != nil {
		writeError(c, err)
		return
	}

	entry, err := h.app.Entries.AttachFile(c.Request.Context(), caller(c), c.Param("entryID"), filepath.Base(header.Filename), data)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *handler) openFile(c *gin.Context) {
	r, name, err := h.app.Entries.OpenFile(c.Request.Context(), c.Param("entryID"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer r.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, -1, contentType, r, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	})
}

func (h *handler) deleteFile(c *gin.Context) {
	if err := h.app.Entries.DeleteFile(c.Request.Context(), caller(c), c.Param("entryID")); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
