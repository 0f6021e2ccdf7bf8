package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"canteen/internal/domain"
	"canteen/internal/service"
)

type viewResp struct {
	Version uint64         `json:"version"`
	At      time.Time      `json:"at"`
	Orders  []domain.Order `json:"orders"`
}

// @Summary Live queue
// @Tags queue
// @Produce json
// @Success 200 {array} domain.Order
// @Router /queue [get]
func (s *Server) activeQueue(c *gin.Context) {
	s.currentView(c, service.ActiveQueueView())
}

// @Summary Live queue stream
// @Description Server-Sent Events: каждое событие содержит полный список, а не изменения
// @Tags queue
// @Produce text/event-stream
// @Success 200 {object} viewResp
// @Router /queue/stream [get]
func (s *Server) activeQueueStream(c *gin.Context) {
	s.streamView(c, service.ActiveQueueView())
}

// @Summary Customer orders
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {array} domain.Order
// @Router /customers/{id}/orders [get]
func (s *Server) customerOrders(c *gin.Context) {
	s.currentView(c, service.CustomerView(c.Param("id")))
}

// @Summary Customer orders stream
// @Tags customers
// @Produce text/event-stream
// @Param id path string true "Customer ID"
// @Success 200 {object} viewResp
// @Router /customers/{id}/orders/stream [get]
func (s *Server) customerOrdersStream(c *gin.Context) {
	s.streamView(c, service.CustomerView(c.Param("id")))
}

func (s *Server) currentView(c *gin.Context, v service.View) {
	list, err := s.projection.Current(c, v)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// streamView шлёт полный список на каждое изменение; id события = версия снимка
func (s *Server) streamView(c *gin.Context, v service.View) {
	ctx := c.Request.Context()
	updates, err := s.projection.Watch(ctx, v)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.ObserverConnected()
	defer s.metrics.ObserverDisconnected()
	s.log.Debug("stream opened", zap.String("view", v.Name), zap.String("client_ip", c.ClientIP()))

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case u, ok := <-updates:
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{
				Id:    strconv.FormatUint(u.Version, 10),
				Event: v.Name,
				Data:  viewResp{Version: u.Version, At: u.At, Orders: u.Orders},
			})
			return true
		case <-keepalive.C:
			c.SSEvent("keepalive", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
