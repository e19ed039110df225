package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestUnlockRateLimitMiddleware_ThrottlesPerSurvey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST(
		"/v1/surveys/:survey_id/key/unlock",
		UnlockRateLimitMiddleware(1, 2),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	do := func(surveyID string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/surveys/"+surveyID+"/key/unlock", nil)
		router.ServeHTTP(w, req)
		return w.Code
	}

	// Burst of 2 is allowed, the third attempt is throttled.
	assert.Equal(t, http.StatusOK, do("survey-a"))
	assert.Equal(t, http.StatusOK, do("survey-a"))
	assert.Equal(t, http.StatusTooManyRequests, do("survey-a"))

	// A different survey has its own bucket.
	assert.Equal(t, http.StatusOK, do("survey-b"))
}
