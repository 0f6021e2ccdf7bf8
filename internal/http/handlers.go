package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"canteen/internal/domain"
	"canteen/internal/metrics"
	"canteen/internal/repository"
	"canteen/internal/service"
)

// Services зависимости API
type Services struct {
	Orders     *service.OrderService
	Menu       *service.MenuService
	Stats      *service.StatsService
	Projection *service.Projection
	Recipients repository.RecipientRepository
	Feedback   *service.FeedbackService
	Favorites  *service.FavoritesService
}

type Options struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics
	// Keepalive период комментариев в SSE-потоках
	Keepalive time.Duration
}

type Server struct {
	engine     *gin.Engine
	orders     *service.OrderService
	menu       *service.MenuService
	stats      *service.StatsService
	projection *service.Projection
	recipients repository.RecipientRepository
	feedback   *service.FeedbackService
	favorites  *service.FavoritesService
	log        *zap.Logger
	metrics    *metrics.Metrics
	keepalive  time.Duration
}

func NewServer(svc Services, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 30 * time.Second
	}
	r := gin.New()
	r.Use(requestLogger(opts.Log), gin.Recovery())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	s := &Server{
		engine:     r,
		orders:     svc.Orders,
		menu:       svc.Menu,
		stats:      svc.Stats,
		projection: svc.Projection,
		recipients: svc.Recipients,
		feedback:   svc.Feedback,
		favorites:  svc.Favorites,
		log:        opts.Log,
		metrics:    opts.Metrics,
		keepalive:  opts.Keepalive,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	anyone := requireRole(RoleCustomer, RoleStaff, RoleAdmin)
	staff := requireRole(RoleStaff, RoleAdmin)
	admin := requireRole(RoleAdmin)

	v1 := s.engine.Group("/api/v1")
	{
		menu := v1.Group("/menu")
		menu.GET("", s.listMenu)
		menu.GET(":id", s.getMenuItem)
		menu.POST("", admin, s.createMenuItem)
		menu.PUT(":id", admin, s.updateMenuItem)
		menu.DELETE(":id", admin, s.deleteMenuItem)

		orders := v1.Group("/orders")
		orders.POST("", requireRole(RoleCustomer), s.createOrder)
		orders.GET("", staff, s.listOrders)
		orders.GET(":id", anyone, s.getOrder)
		orders.POST(":id/cancel", anyone, s.cancelOrder)
		orders.POST(":id/transition", staff, s.transitionOrder)
		orders.POST(":id/preparing", staff, s.startPreparing)
		orders.POST(":id/ready", staff, s.markReady)
		orders.POST(":id/complete", staff, s.markCompleted)
		orders.POST(":id/feedback", requireRole(RoleCustomer), s.submitFeedback)
		orders.GET(":id/feedback", anyone, s.getFeedback)

		// callback платёжного шлюза
		v1.POST("/payments/callback", s.paymentCallback)

		v1.GET("/queue", s.activeQueue)
		v1.GET("/queue/stream", s.activeQueueStream)

		customers := v1.Group("/customers", anyone)
		customers.GET(":id/orders", s.customerOrders)
		customers.GET(":id/orders/stream", s.customerOrdersStream)
		customers.PUT(":id/device-token", s.putDeviceToken)
		customers.GET(":id/favorites", s.listFavorites)
		customers.PUT(":id/favorites/:itemId", s.addFavorite)
		customers.DELETE(":id/favorites/:itemId", s.removeFavorite)

		adm := v1.Group("/admin", admin)
		adm.GET("/stats", s.dashboard)
		adm.POST("/batch/reset", s.resetBatch)
		adm.GET("/feedback", s.listFeedback)
	}
}

type lineItemReq struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
}

type createOrderReq struct {
	CustomerID  string           `json:"customer_id"`
	DeviceToken string           `json:"device_token"`
	LineItems   []lineItemReq    `json:"line_items"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
}

type anomalyResp struct {
	Kind    string `json:"kind"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

type transitionResp struct {
	Order     *domain.Order `json:"order"`
	Anomalies []anomalyResp `json:"anomalies,omitempty"`
	Replayed  bool          `json:"replayed,omitempty"`
}

func toTransitionResp(res *service.TransitionResult) transitionResp {
	out := transitionResp{Order: res.Order, Replayed: res.Replayed}
	for _, a := range res.Anomalies {
		out.Anomalies = append(out.Anomalies, anomalyResp{Kind: a.Kind, OrderID: a.OrderID, Message: a.Error()})
	}
	return out
}

func (s *Server) fail(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// @Summary Create order
// @Tags orders
// @Accept json
// @Produce json
// @Param X-Role header string true "customer"
// @Param input body createOrderReq true "Order"
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	items := make([]domain.LineItem, 0, len(req.LineItems))
	for _, it := range req.LineItems {
		items = append(items, domain.LineItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		})
	}
	o, err := s.orders.CreateOrder(c, service.CreateOrderInput{
		CustomerID:   req.CustomerID,
		RecipientRef: req.DeviceToken,
		LineItems:    items,
		TotalAmount:  req.TotalAmount,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	o, err := s.orders.GetOrder(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary List orders
// @Tags orders
// @Produce json
// @Param state query []string false "Order states" collectionFormat(multi)
// @Param payment_state query string false "Payment state"
// @Param customer_id query string false "Customer"
// @Param batch query string false "Queue batch"
// @Success 200 {array} domain.Order
// @Failure 400 {object} map[string]string
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	f := repository.OrderFilter{
		CustomerID: c.Query("customer_id"),
		QueueBatch: c.Query("batch"),
	}
	for _, v := range c.QueryArray("state") {
		st, err := domain.ParseOrderState(v)
		if err != nil {
			s.fail(c, err)
			return
		}
		f.States = append(f.States, st)
	}
	if v := c.Query("payment_state"); v != "" {
		ps, err := domain.ParsePaymentState(v)
		if err != nil {
			s.fail(c, err)
			return
		}
		f.PaymentStates = []domain.PaymentState{ps}
	}
	list, err := s.orders.ListOrders(c, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Cancel order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} transitionResp
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/cancel [post]
func (s *Server) cancelOrder(c *gin.Context) {
	res, err := s.orders.Cancel(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransitionResp(res))
}

type transitionReq struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// @Summary Staff transition
// @Description from можно не указывать: тогда берётся единственное допустимое предыдущее состояние
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body transitionReq true "Transition"
// @Success 200 {object} transitionResp
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/transition [post]
func (s *Server) transitionOrder(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	to, err := domain.ParseOrderState(req.To)
	if err != nil {
		s.fail(c, err)
		return
	}
	var from domain.OrderState
	if req.From == "" {
		prev, ok := domain.StaffPredecessor(to)
		if !ok {
			s.fail(c, domain.NewValidationError("to", "is not a staff target state"))
			return
		}
		from = prev
	} else if from, err = domain.ParseOrderState(req.From); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.orders.Transition(c, c.Param("id"), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransitionResp(res))
}

// @Summary Start preparing
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} transitionResp
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/preparing [post]
func (s *Server) startPreparing(c *gin.Context) {
	s.staffStep(c, s.orders.StartPreparing)
}

// @Summary Mark ready
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} transitionResp
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/ready [post]
func (s *Server) markReady(c *gin.Context) {
	s.staffStep(c, s.orders.MarkReady)
}

// @Summary Mark picked up
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} transitionResp
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/complete [post]
func (s *Server) markCompleted(c *gin.Context) {
	s.staffStep(c, s.orders.MarkCompleted)
}

func (s *Server) staffStep(c *gin.Context, step func(ctx context.Context, id string) (*service.TransitionResult, error)) {
	res, err := step(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransitionResp(res))
}

// @Summary Payment gateway callback
// @Description status "captured" ставит заказ в очередь, любой другой статус отменяет его
// @Tags payments
// @Accept json
// @Produce json
// @Param input body service.PaymentCallback true "Callback"
// @Success 200 {object} transitionResp
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /payments/callback [post]
func (s *Server) paymentCallback(c *gin.Context) {
	var cb service.PaymentCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := s.orders.ConfirmPayment(c, cb)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransitionResp(res))
}

type deviceTokenReq struct {
	Token string `json:"token"`
}

// @Summary Register device token
// @Tags customers
// @Accept json
// @Param id path string true "Customer ID"
// @Param input body deviceTokenReq true "Token"
// @Success 204
// @Failure 400 {object} map[string]string
// @Router /customers/{id}/device-token [put]
func (s *Server) putDeviceToken(c *gin.Context) {
	var req deviceTokenReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := s.recipients.Set(c, c.Param("id"), req.Token); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Dashboard stats
// @Tags admin
// @Produce json
// @Param day query string false "YYYY-MM-DD, по умолчанию сегодня"
// @Success 200 {object} service.DashboardStats
// @Failure 400 {object} map[string]string
// @Router /admin/stats [get]
func (s *Server) dashboard(c *gin.Context) {
	day := time.Now()
	if v := c.Query("day"); v != "" {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day"})
			return
		}
		// полдень, чтобы дата не съехала при переводе в пояс столовой
		day = parsed.Add(12 * time.Hour)
	}
	st, err := s.stats.Dashboard(c, day)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type resetBatchReq struct {
	Batch string `json:"batch"`
}

// @Summary Reset queue batch
// @Tags admin
// @Accept json
// @Param input body resetBatchReq false "Batch, по умолчанию текущая"
// @Success 204
// @Failure 409 {object} map[string]string
// @Router /admin/batch/reset [post]
func (s *Server) resetBatch(c *gin.Context) {
	var req resetBatchReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if err := s.orders.ResetBatch(c, req.Batch); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAllocationFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
