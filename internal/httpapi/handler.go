// Package httpapi exposes document-level CRUD over HTTP. The CAS token
// travels as the ETag: conditional writes use If-Match, insert-only uses
// If-None-Match: *, and a lost race answers 412 so clients re-GET and retry.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/casdoc/casdoc/internal/archive"
	"github.com/casdoc/casdoc/internal/document"
	"github.com/casdoc/casdoc/internal/store"
	"github.com/casdoc/casdoc/pkg/logger"
)

type Handler struct {
	store    store.Store
	archiver *archive.Archiver // optional snapshot export
}

func NewHandler(st store.Store, arch *archive.Archiver) *Handler {
	return &Handler{store: st, archiver: arch}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/v1/docs/:key", h.get)
	r.PUT("/v1/docs/:key", h.put)
	r.DELETE("/v1/docs/:key", h.remove)
}

func (h *Handler) get(c *gin.Context) {
	doc, cas, err := h.store.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Header("ETag", ETag(cas))
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) put(c *gin.Context) {
	key := c.Param("key")

	var doc document.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := doc.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := store.PutOptions{}
	if m := c.GetHeader("If-Match"); m != "" {
		cas := store.CAS(TrimETag(m))
		opts.IfCAS = &cas
	} else if c.GetHeader("If-None-Match") == "*" {
		opts.IfAbsent = true
	}
	if ttl := c.Query("ttl"); ttl != "" {
		secs, err := strconv.Atoi(ttl)
		if err != nil || secs < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		opts.TTL = time.Duration(secs) * time.Second
	}

	cas, err := h.store.Put(c.Request.Context(), key, doc, opts)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrCASMismatch):
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "cas mismatch, re-load and retry"})
		case errors.Is(err, store.ErrKeyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "key already exists"})
		case errors.Is(err, document.ErrInvalidKey), errors.Is(err, document.ErrInvalidValue), errors.Is(err, document.ErrTooDeep):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	if h.archiver != nil {
		// best effort; a failed snapshot never fails the write
		if err := h.archiver.Snapshot(c.Request.Context(), key, doc, cas); err != nil {
			logger.Warnf("snapshot of %q failed: %v", key, err)
		}
	}

	c.Header("ETag", ETag(cas))
	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (h *Handler) remove(c *gin.Context) {
	var ifCAS *store.CAS
	if m := c.GetHeader("If-Match"); m != "" {
		cas := store.CAS(TrimETag(m))
		ifCAS = &cas
	}
	err := h.store.Remove(c.Request.Context(), c.Param("key"), ifCAS)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(err, store.ErrCASMismatch):
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "cas mismatch"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

