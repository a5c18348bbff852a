package lookup

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/statenames/internal/api/v1"
	httperr "github.com/aevon-lab/statenames/internal/core/errors"
)

// RegisterRoutes registers all lookup API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	// Flat request shape: query parameters or a JSON body.
	r.GET("/v1/names", s.HandleLookup)
	r.POST("/v1/names", s.HandleLookup)

	// Assistant tool-call envelope shape.
	r.POST("/v1/names/tool-calls", s.HandleToolCallLookup)
}

// HandleLookup handles the flat request shape.
// GET reads state and bucket from query parameters; POST reads a JSON body.
func (s *Service) HandleLookup(c *gin.Context) {
	var req v1.LookupRequest

	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidJsonError,
				Message:   "Invalid JSON payload",
				Details:   err.Error(),
			})
			return
		}
	} else {
		req.State = c.Query("state")
		req.Bucket = c.Query("bucket")
	}

	s.resolveAndRespond(c, &req)
}

// HandleToolCallLookup handles POST /v1/names/tool-calls.
// The body is read raw because the envelope may arrive JSON-encoded twice.
func (s *Service) HandleToolCallLookup(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Failed to read request body",
			Details:   err.Error(),
		})
		return
	}

	envelope, err := v1.DecodeToolCallBody(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON payload",
			Details:   err.Error(),
		})
		return
	}

	req, err := envelope.Lookup()
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid request format",
			Details:   err.Error(),
		})
		return
	}

	s.resolveAndRespond(c, req)
}

func (s *Service) resolveAndRespond(c *gin.Context, req *v1.LookupRequest) {
	names, err := s.Resolve(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			s.countLookup("invalid", 0)
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidRequestError,
				Message:   "Invalid lookup request",
				Details:   err.Error(),
			})
			return
		}

		s.countLookup("error", 0)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpStorageError,
			Message:   "Failed to resolve names",
			Details:   err.Error(),
		})
		return
	}

	result := "ok"
	if len(names) == 0 {
		result = "empty"
	}
	s.countLookup(result, len(names))

	c.JSON(http.StatusOK, v1.LookupResponse{Names: names, Count: len(names)})
}
