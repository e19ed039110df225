package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	custodianDomain "github.com/opensurvey/keyvault/internal/custodian/domain"
	"github.com/opensurvey/keyvault/internal/custodian/http/dto"
	custodianService "github.com/opensurvey/keyvault/internal/custodian/service"
	custodianUseCase "github.com/opensurvey/keyvault/internal/custodian/usecase"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type discardAuditor struct{}

func (discardAuditor) Record(_ context.Context, _ string, action auditDomain.Action, _ string, _ any) (*auditDomain.Entry, error) {
	return &auditDomain.Entry{Action: action}, nil
}

func setupTestHandler(t *testing.T) (*CustodianHandler, *custodianDomain.ShareSet) {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	splitter := custodianService.NewShamirSplitter()
	set, err := splitter.Split(key, 2, 3)
	require.NoError(t, err)

	custodian := custodianService.NewLockedCustodian(splitter, 2, custodianService.Fingerprint(key))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	useCase := custodianUseCase.NewCustodianUseCase(custodian, 2, discardAuditor{}, logger)
	return NewCustodianHandler(useCase, logger), set
}

func jsonRequest(t *testing.T, method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func submitShare(t *testing.T, handler *CustodianHandler, custodianID string, share []byte) *httptest.ResponseRecorder {
	t.Helper()
	request := dto.SubmitShareRequest{
		CustodianID: custodianID,
		Share:       base64.StdEncoding.EncodeToString(share),
	}
	c, w := jsonRequest(t, http.MethodPost, "/v1/custodian/shares", request)
	handler.SubmitShareHandler(c)
	return w
}

func TestCustodianHandlerSubmitShares(t *testing.T) {
	handler, set := setupTestHandler(t)

	w := submitShare(t, handler, "alice", set.Shares[0])
	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.SubmitShareResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Accepted)
	assert.False(t, response.Unlocked)

	w = submitShare(t, handler, "bob", set.Shares[1])
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Unlocked)

	// A share after the quorum is a conflict.
	w = submitShare(t, handler, "carol", set.Shares[2])
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCustodianHandlerStatus(t *testing.T) {
	handler, set := setupTestHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/custodian/status", nil)
	handler.StatusHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var status dto.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Unlocked)
	assert.Equal(t, 2, status.Threshold)

	submitShare(t, handler, "alice", set.Shares[0])
	submitShare(t, handler, "bob", set.Shares[1])

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/custodian/status", nil)
	handler.StatusHandler(c)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Unlocked)
}

func TestCustodianHandlerRejectsBadShare(t *testing.T) {
	handler, _ := setupTestHandler(t)

	request := dto.SubmitShareRequest{CustodianID: "alice", Share: "not-base64!!"}
	c, w := jsonRequest(t, http.MethodPost, "/v1/custodian/shares", request)
	handler.SubmitShareHandler(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	c, w = jsonRequest(t, http.MethodPost, "/v1/custodian/shares", dto.SubmitShareRequest{})
	handler.SubmitShareHandler(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
