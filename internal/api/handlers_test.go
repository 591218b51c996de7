package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storybook-server/internal/api"
	"storybook-server/internal/config"
	"storybook-server/internal/mocks"
	"storybook-server/internal/model"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type apiFixture struct {
	repo      *mocks.MockStorybookRepository
	publisher *mocks.MockTaskPublisher
	status    *mocks.MockStatusStore
	router    *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	f := &apiFixture{
		repo:      mocks.NewMockStorybookRepository(t),
		publisher: mocks.NewMockTaskPublisher(t),
		status:    mocks.NewMockStatusStore(t),
	}
	cfg := config.HTTPConfig{MaxPageSize: 10, AllowedOrigins: []string{"*"}}
	verifier, err := api.NewTokenVerifier(testSecret, "", zap.NewNop())
	require.NoError(t, err)
	handler := api.NewStorybookHandler(f.repo, f.publisher, f.status, cfg, zap.NewNop())
	f.router = api.NewRouter(cfg, handler, verifier, nil, zap.NewNop())
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func validBody() map[string]any {
	return map[string]any{
		"originalPrompt": "A little fox learns to share berries",
		"childAge":       5,
		"voiceProfile":   "female",
		"visualStyleId":  "watercolor",
		"learningTagIds": []string{"counting_math"},
	}
}

func TestHealthAndCatalog(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/catalog/learning-tags", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tags []model.LearningTag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tags))
	assert.Len(t, tags, len(model.LearningTags()))

	rec = f.do(t, http.MethodGet, "/api/v1/catalog/visual-styles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var styles []model.VisualStyle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &styles))
	assert.Len(t, styles, len(model.VisualStyles()))
}

func TestAuth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/storybooks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/storybooks", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/storybooks", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateStorybook(t *testing.T) {
	t.Run("queues task", func(t *testing.T) {
		f := newAPIFixture(t)
		var published model.GenerationTaskPayload
		f.status.On("Put", mock.Anything, mock.MatchedBy(func(u model.ProgressUpdate) bool {
			return u.Status == model.StorybookStatusQueued && u.UserID == "user-1" && u.Stage == model.StageInitial
		})).Return(nil).Once()
		f.publisher.On("PublishTask", mock.Anything, mock.MatchedBy(func(p model.GenerationTaskPayload) bool {
			return p.Request.UserID == "user-1" && p.Request.ChildAge == 5 && p.TaskID != p.StorybookID
		})).Run(func(args mock.Arguments) {
			published = args.Get(1).(model.GenerationTaskPayload)
		}).Return(nil).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/storybooks", "user-1", validBody())
		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp struct {
			StorybookID string `json:"storybookId"`
			TaskID      string `json:"taskId"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, published.StorybookID, resp.StorybookID)
		assert.Equal(t, published.TaskID, resp.TaskID)
		assert.Equal(t, []string{"counting_math"}, published.Request.LearningTagIDs)
	})

	t.Run("rejects invalid request", func(t *testing.T) {
		f := newAPIFixture(t)
		body := validBody()
		body["childAge"] = 0
		rec := f.do(t, http.MethodPost, "/api/v1/storybooks", "user-1", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "ChildAge")
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		f := newAPIFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/storybooks", strings.NewReader("{"))
		req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1"))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("queue unavailable", func(t *testing.T) {
		f := newAPIFixture(t)
		f.status.On("Put", mock.Anything, mock.MatchedBy(func(u model.ProgressUpdate) bool {
			return u.Status == model.StorybookStatusQueued
		})).Return(nil).Once()
		f.publisher.On("PublishTask", mock.Anything, mock.Anything).Return(errors.New("channel closed")).Once()
		f.status.On("Put", mock.Anything, mock.MatchedBy(func(u model.ProgressUpdate) bool {
			return u.Status == model.StorybookStatusFailed && u.Error != ""
		})).Return(nil).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/storybooks", "user-1", validBody())
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestListStorybooks(t *testing.T) {
	f := newAPIFixture(t)
	books := []*model.Storybook{{ID: "b2", UserID: "user-1"}, {ID: "b1", UserID: "user-1"}}
	f.repo.On("ListByUser", mock.Anything, "user-1", 10, 5).Return(books, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/storybooks?limit=100&offset=5", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Storybooks []model.Storybook `json:"storybooks"`
		Limit      int               `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Limit)
	require.Len(t, resp.Storybooks, 2)
	assert.Equal(t, "b2", resp.Storybooks[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/storybooks?limit=abc", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/v1/storybooks?offset=-1", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStorybook(t *testing.T) {
	f := newAPIFixture(t)
	book := &model.Storybook{ID: "b1", UserID: "user-1", Title: "Fox", Pages: []model.StorybookPage{{PageNumber: 1, Text: "Fox."}}}
	f.repo.On("GetByID", mock.Anything, "b1").Return(book, nil)
	f.repo.On("GetByID", mock.Anything, "missing").Return(nil, model.ErrNotFound).Once()
	f.repo.On("GetByID", mock.Anything, "broken").Return(nil, errors.New("db down")).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/storybooks/b1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Storybook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Fox", got.Title)
	assert.Len(t, got.Pages, 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/storybooks/b1", "user-2", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/storybooks/missing", "user-1", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodGet, "/api/v1/storybooks/broken", "user-1", nil).Code)
}

func TestGetStatus(t *testing.T) {
	f := newAPIFixture(t)
	update := &model.ProgressUpdate{StorybookID: "b1", UserID: "user-1", Status: model.StorybookStatusRunning, Stage: model.StagePagesImaged, Progress: 40}
	f.status.On("Get", mock.Anything, "b1").Return(update, nil)
	f.status.On("Get", mock.Anything, "missing").Return(nil, model.ErrNotFound).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/storybooks/b1/status", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.ProgressUpdate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.StagePagesImaged, got.Stage)
	assert.Equal(t, 40, got.Progress)
	assert.Contains(t, rec.Body.String(), `"stage":"pages_imaged"`)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/storybooks/b1/status", "user-2", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/storybooks/missing/status", "user-1", nil).Code)
}

func TestStreamStatus(t *testing.T) {
	f := newAPIFixture(t)
	updates := make(chan model.ProgressUpdate, 2)
	f.status.On("Subscribe", mock.Anything, "b1").Return(updates, nil).Once()
	f.status.On("Get", mock.Anything, "b1").Return(&model.ProgressUpdate{
		StorybookID: "b1", UserID: "user-1", Status: model.StorybookStatusRunning, Stage: model.StageStoryRewritten, Progress: 25,
	}, nil).Once()

	server := httptest.NewServer(f.router)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/storybooks/b1/ws?token=" + signToken(t, "user-1")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first model.ProgressUpdate
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 25, first.Progress)

	updates <- model.ProgressUpdate{StorybookID: "b1", UserID: "user-1", Status: model.StorybookStatusRunning, Stage: model.StagePagesImaged, Progress: 50}
	updates <- model.ProgressUpdate{StorybookID: "b1", UserID: "user-1", Status: model.StorybookStatusCompleted, Stage: model.StageComplete, Progress: 100}

	var second, last model.ProgressUpdate
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, 50, second.Progress)
	require.NoError(t, conn.ReadJSON(&last))
	assert.True(t, last.Terminal())

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestStreamStatus_ForeignStorybook(t *testing.T) {
	f := newAPIFixture(t)
	f.status.On("Subscribe", mock.Anything, "b1").Return(make(chan model.ProgressUpdate), nil).Once()
	f.status.On("Get", mock.Anything, "b1").Return(&model.ProgressUpdate{StorybookID: "b1", UserID: "user-1"}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/storybooks/b1/ws", "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
