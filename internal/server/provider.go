package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxProviderBodyBytes caps inbound provider payloads well above anything a
// legitimate event carries.
const maxProviderBodyBytes = 1 << 20

// IngestProviderWebhook receives one provider event. A 200 tells the provider
// to stop retrying; any non-2xx asks it to try again later.
func (s *Server) IngestProviderWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxProviderBodyBytes+1))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(payload) == 0 || len(payload) > maxProviderBodyBytes {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.providerSvc.Ingest(c.Request.Context(), c.Param("provider"), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	response := gin.H{"received": true}
	if result.Duplicate {
		response["duplicate"] = true
	}
	c.JSON(http.StatusOK, response)
}
