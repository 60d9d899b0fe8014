package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/wqfan/roomrelay/internal/log"
	"github.com/wqfan/roomrelay/rooms"
	"github.com/wqfan/roomrelay/transport"
)

type nopSender struct{}

func (nopSender) Notify(context.Context, string, any) error { return nil }

type RouterSuite struct {
	suite.Suite
	coord  *rooms.Coordinator
	router *transport.Router
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.coord = rooms.NewCoordinator(log.NewNop())
	s.router = transport.NewRouter(s.coord, log.NewTest(s.T()))
}

func (s *RouterSuite) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	s.router.Handler().ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) TestHealthCheck() {
	w := s.get("/health")

	s.Equal(http.StatusOK, w.Code)

	var resp map[string]any
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	s.NoError(err)
	s.Equal("ok", resp["status"])
}

func (s *RouterSuite) TestListRooms_Empty() {
	w := s.get("/v1/rooms")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"rooms": [], "count": 0}`, w.Body.String())
}

func (s *RouterSuite) TestListRooms() {
	ctx := context.Background()
	s.coord.Join(ctx, "room-a", "alice", "c1", nopSender{})
	s.coord.Join(ctx, "room-a", "bob", "c2", nopSender{})
	s.coord.Join(ctx, "room-b", "carol", "c3", nopSender{})

	w := s.get("/v1/rooms")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{
		"rooms": [
			{"key": "room-a", "members": 2},
			{"key": "room-b", "members": 1}
		],
		"count": 2
	}`, w.Body.String())
}

func (s *RouterSuite) TestGetRoom() {
	ctx := context.Background()
	s.coord.Join(ctx, "room-a", "bob", "c1", nopSender{})
	s.coord.Join(ctx, "room-a", "alice", "c2", nopSender{})

	w := s.get("/v1/rooms/room-a")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"room": "room-a", "users": ["alice", "bob"]}`, w.Body.String())
}

func (s *RouterSuite) TestGetRoom_NotFound() {
	w := s.get("/v1/rooms/missing-room")

	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestGetRoom_InvalidKey() {
	w := s.get("/v1/rooms/a!")

	s.Equal(http.StatusBadRequest, w.Code)
}
