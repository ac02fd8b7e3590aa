package accounts

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/casdoc/casdoc/internal/httpapi"
	"github.com/casdoc/casdoc/internal/repository"
	"github.com/casdoc/casdoc/internal/store"
)

// RegisterRoutes mounts the account endpoints. Concurrency errors map to
// the usual HTTP statuses: 409 for a duplicate insert, 412 for a stale
// token.
func RegisterRoutes(r gin.IRouter, svc *Service) {
	r.POST("/v1/accounts", func(c *gin.Context) {
		var a Account
		if err := c.ShouldBindJSON(&a); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		created, err := svc.Create(c.Request.Context(), &a)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	r.GET("/v1/accounts/:id", func(c *gin.Context) {
		a, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	})

	r.PUT("/v1/accounts/:id", func(c *gin.Context) {
		var a Account
		if err := c.ShouldBindJSON(&a); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a.ID = c.Param("id")
		updated, err := svc.Update(c.Request.Context(), &a)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})

	r.DELETE("/v1/accounts/:id", func(c *gin.Context) {
		var ifCAS *store.CAS
		if m := c.GetHeader("If-Match"); m != "" {
			cas := store.CAS(httpapi.TrimETag(m))
			ifCAS = &cas
		}
		if err := svc.Delete(c.Request.Context(), c.Param("id"), ifCAS); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func writeError(c *gin.Context, err error) {
	var verr *repository.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "violations": verr.Violations})
	case errors.Is(err, repository.ErrOptimisticLock):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "version conflict, re-load and retry"})
	case errors.Is(err, repository.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
