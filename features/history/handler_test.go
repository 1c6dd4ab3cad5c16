package history_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"careerstack/apps/converter/features/history"
)

// MockRepo implements history.Repository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, c *history.Conversion) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}
func (m *MockRepo) List(ctx context.Context, limit, offset int) ([]history.Conversion, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.Conversion), args.Error(1)
}
func (m *MockRepo) Get(ctx context.Context, id string) (*history.Conversion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*history.Conversion), args.Error(1)
}
func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

const knownID = "6f1d0d43-8a52-4c36-9f5e-5d1c2f0e9a11"

func TestHandler_List(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := history.NewHandler(history.NewService(mockRepo))

	mockRepo.On("List", mock.Anything, history.DefaultLimit, 0).Return(nil, nil)
	mockRepo.On("Count", mock.Anything).Return(0, nil)

	req := httptest.NewRequest("GET", "/conversions", nil)
	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []interface{}{}, body["data"])
	assert.Equal(t, float64(0), body["meta"].(map[string]interface{})["count"])
	assert.Equal(t, float64(0), body["meta"].(map[string]interface{})["total"])
}

func TestHandler_List_ClampsLimit(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := history.NewHandler(history.NewService(mockRepo))

	mockRepo.On("List", mock.Anything, history.MaxLimit, 20).
		Return([]history.Conversion{{ID: knownID, Kind: "docx_to_html"}}, nil)
	mockRepo.On("Count", mock.Anything).Return(21, nil)

	req := httptest.NewRequest("GET", "/conversions?limit=100000&offset=20", nil)
	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)

	var body struct {
		Meta struct {
			Count int `json:"count"`
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Meta.Count)
	assert.Equal(t, 21, body.Meta.Total)
}

func TestHandler_List_CountError(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := history.NewHandler(history.NewService(mockRepo))

	mockRepo.On("List", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	mockRepo.On("Count", mock.Anything).Return(0, errors.New("db down"))

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/conversions", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestHandler_List_Error(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := history.NewHandler(history.NewService(mockRepo))

	mockRepo.On("List", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/conversions", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestHandler_Get(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := history.NewHandler(history.NewService(mockRepo))

	mockRepo.On("Get", mock.Anything, knownID).Return(&history.Conversion{ID: knownID, Status: history.StatusSucceeded}, nil)

	req := httptest.NewRequest("GET", "/conversions/"+knownID, nil)
	req.SetPathValue("id", knownID)
	w := httptest.NewRecorder()
	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), knownID)
}

func TestHandler_Get_NotFound(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := history.NewHandler(history.NewService(mockRepo))

	mockRepo.On("Get", mock.Anything, knownID).Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("GET", "/conversions/"+knownID, nil)
	req.SetPathValue("id", knownID)
	w := httptest.NewRecorder()
	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestHandler_Get_MalformedID(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := history.NewHandler(history.NewService(mockRepo))

	req := httptest.NewRequest("GET", "/conversions/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	w := httptest.NewRecorder()
	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockRepo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestService_RecordAssignsID(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := history.NewService(mockRepo)

	mockRepo.On("Save", mock.Anything, mock.AnythingOfType("*history.Conversion")).Return(nil)

	c := &history.Conversion{Kind: "docx_to_html", Status: history.StatusSucceeded}
	require.NoError(t, svc.Record(context.Background(), c))
	assert.NotEmpty(t, c.ID)
}
