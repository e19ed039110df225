package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recoveryDomain "github.com/opensurvey/keyvault/internal/recovery/domain"
	"github.com/opensurvey/keyvault/internal/recovery/http/dto"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeEngine scripts recovery engine outcomes for handler tests.
type fakeEngine struct {
	request   *recoveryDomain.RecoveryRequest
	submitErr error
	claimKey  []byte
	claimErr  error

	submitCalls  int
	intakeCalls  int
	approveCalls int
	objectCalls  int

	lastRole    recoveryDomain.ApproverRole
	lastAdminID uuid.UUID
}

func (f *fakeEngine) Submit(
	_ context.Context, _ uuid.UUID, _ *uuid.UUID, _ uuid.UUID, _ string,
) (*recoveryDomain.RecoveryRequest, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.request, nil
}

func (f *fakeEngine) AcceptIntake(_ context.Context, _ uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	f.intakeCalls++
	f.request.State = recoveryDomain.StateVerificationPending
	return f.request, nil
}

func (f *fakeEngine) SubmitEvidence(_ context.Context, _ uuid.UUID, _ []byte) (*recoveryDomain.RecoveryRequest, error) {
	return f.request, nil
}

func (f *fakeEngine) ResolveVerification(_ context.Context, _ uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return f.request, nil
}

func (f *fakeEngine) Approve(
	_ context.Context, _ uuid.UUID, adminID uuid.UUID, role recoveryDomain.ApproverRole,
) (*recoveryDomain.RecoveryRequest, error) {
	f.approveCalls++
	f.lastAdminID = adminID
	f.lastRole = role
	return f.request, nil
}

func (f *fakeEngine) Reject(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return f.request, nil
}

func (f *fakeEngine) Object(_ context.Context, _ uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	f.objectCalls++
	f.request.State = recoveryDomain.StateCancelled
	f.request.ObjectionFlag = true
	return f.request, nil
}

func (f *fakeEngine) Complete(_ context.Context, _ uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return f.request, nil
}

func (f *fakeEngine) ClaimRecoveredKey(_ context.Context, _ uuid.UUID) ([]byte, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.claimKey, nil
}

func (f *fakeEngine) Get(_ context.Context, _ uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	if f.request == nil {
		return nil, recoveryDomain.ErrRequestNotFound
	}
	return f.request, nil
}

func setupTestHandler(t *testing.T) (*RecoveryHandler, *fakeEngine) {
	t.Helper()
	engine := &fakeEngine{
		request: &recoveryDomain.RecoveryRequest{
			ID:                 uuid.Must(uuid.NewV7()),
			SurveyID:           uuid.Must(uuid.NewV7()),
			SubjectUserID:      uuid.Must(uuid.NewV7()),
			State:              recoveryDomain.StateSubmitted,
			VerificationMethod: "government_id",
			CreatedAt:          time.Now().UTC(),
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecoveryHandler(engine, logger), engine
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

func TestRecoveryHandlerSubmit(t *testing.T) {
	t.Run("SuccessAcceptsIntake", func(t *testing.T) {
		handler, engine := setupTestHandler(t)

		request := dto.SubmitRecoveryRequest{
			SurveyID:           engine.request.SurveyID.String(),
			SubjectUserID:      engine.request.SubjectUserID.String(),
			VerificationMethod: "government_id",
		}

		c, w := jsonRequest(t, http.MethodPost, "/v1/recovery-requests", request)

		handler.SubmitHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, engine.submitCalls)
		assert.Equal(t, 1, engine.intakeCalls)

		var response dto.RecoveryRequestResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, string(recoveryDomain.StateVerificationPending), response.State)
	})

	t.Run("DuplicateActiveRequestReturns409", func(t *testing.T) {
		handler, engine := setupTestHandler(t)
		engine.submitErr = recoveryDomain.ErrRequestAlreadyActive

		request := dto.SubmitRecoveryRequest{
			SurveyID:           engine.request.SurveyID.String(),
			SubjectUserID:      engine.request.SubjectUserID.String(),
			VerificationMethod: "government_id",
		}

		c, w := jsonRequest(t, http.MethodPost, "/v1/recovery-requests", request)

		handler.SubmitHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("MissingFieldsReturns422", func(t *testing.T) {
		handler, engine := setupTestHandler(t)

		c, w := jsonRequest(t, http.MethodPost, "/v1/recovery-requests", dto.SubmitRecoveryRequest{})

		handler.SubmitHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Zero(t, engine.submitCalls)
	})
}

func TestRecoveryHandlerApprove(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, engine := setupTestHandler(t)
		adminID := uuid.Must(uuid.NewV7())

		request := dto.ApproveRecoveryRequest{AdminID: adminID.String(), Role: "secondary"}

		c, w := jsonRequest(
			t, http.MethodPost, "/v1/recovery-requests/"+engine.request.ID.String()+"/approve", request,
		)
		c.Params = gin.Params{{Key: "request_id", Value: engine.request.ID.String()}}

		handler.ApproveHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, recoveryDomain.RoleSecondary, engine.lastRole)
		assert.Equal(t, adminID, engine.lastAdminID)
	})

	t.Run("UnknownRoleReturns422", func(t *testing.T) {
		handler, engine := setupTestHandler(t)

		request := dto.ApproveRecoveryRequest{AdminID: uuid.Must(uuid.NewV7()).String(), Role: "tertiary"}

		c, w := jsonRequest(
			t, http.MethodPost, "/v1/recovery-requests/"+engine.request.ID.String()+"/approve", request,
		)
		c.Params = gin.Params{{Key: "request_id", Value: engine.request.ID.String()}}

		handler.ApproveHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Zero(t, engine.approveCalls)
	})
}

func TestRecoveryHandlerObjection(t *testing.T) {
	handler, engine := setupTestHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(
		http.MethodPost, "/v1/recovery-requests/"+engine.request.ID.String()+"/objection", nil,
	)
	c.Params = gin.Params{{Key: "request_id", Value: engine.request.ID.String()}}

	handler.ObjectionHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, engine.objectCalls)

	var response dto.RecoveryRequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.ObjectionFlag)
	assert.Equal(t, string(recoveryDomain.StateCancelled), response.State)
}

func TestRecoveryHandlerClaim(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, engine := setupTestHandler(t)
		engine.claimKey = bytes.Repeat([]byte{0x7f}, 32)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(
			http.MethodPost, "/v1/recovery-requests/"+engine.request.ID.String()+"/claim", nil,
		)
		c.Params = gin.Params{{Key: "request_id", Value: engine.request.ID.String()}}

		handler.ClaimHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.RecoveredKeyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, bytes.Repeat([]byte{0x7f}, 32), response.Key)
	})

	t.Run("NotClaimableReturns409", func(t *testing.T) {
		handler, engine := setupTestHandler(t)
		engine.claimErr = recoveryDomain.ErrNotClaimable

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(
			http.MethodPost, "/v1/recovery-requests/"+engine.request.ID.String()+"/claim", nil,
		)
		c.Params = gin.Params{{Key: "request_id", Value: engine.request.ID.String()}}

		handler.ClaimHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRecoveryHandlerGetNotFound(t *testing.T) {
	handler, engine := setupTestHandler(t)
	engine.request = nil

	requestID := uuid.Must(uuid.NewV7())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/recovery-requests/"+requestID.String(), nil)
	c.Params = gin.Params{{Key: "request_id", Value: requestID.String()}}

	handler.GetHandler(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
