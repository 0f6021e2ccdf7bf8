package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"canteen/internal/service"
)

type feedbackReq struct {
	CustomerID string `json:"customer_id"`
	Rating     int    `json:"rating"`
	Message    string `json:"message"`
}

// @Summary Leave feedback on a picked-up order
// @Tags feedback
// @Accept json
// @Produce json
// @Param X-Role header string true "customer"
// @Param id path string true "Order ID"
// @Param input body feedbackReq true "Rating 1-5 and message"
// @Success 201 {object} domain.Feedback
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/feedback [post]
func (s *Server) submitFeedback(c *gin.Context) {
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	f, err := s.feedback.Submit(c, service.SubmitFeedbackInput{
		OrderID:    c.Param("id"),
		CustomerID: req.CustomerID,
		Rating:     req.Rating,
		Message:    req.Message,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// @Summary Feedback of an order
// @Tags feedback
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Feedback
// @Failure 404 {object} map[string]string
// @Router /orders/{id}/feedback [get]
func (s *Server) getFeedback(c *gin.Context) {
	f, err := s.feedback.GetByOrder(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// @Summary All feedback, newest first
// @Tags admin
// @Produce json
// @Param X-Role header string true "admin"
// @Success 200 {array} domain.Feedback
// @Router /admin/feedback [get]
func (s *Server) listFeedback(c *gin.Context) {
	list, err := s.feedback.List(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type favoritesResp struct {
	CustomerID string   `json:"customer_id"`
	Items      []string `json:"items"`
}

// @Summary Favorite menu items
// @Tags customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} favoritesResp
// @Router /customers/{id}/favorites [get]
func (s *Server) listFavorites(c *gin.Context) {
	items, err := s.favorites.List(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, favoritesResp{CustomerID: c.Param("id"), Items: items})
}

// @Summary Add menu item to favorites
// @Tags customers
// @Param id path string true "Customer ID"
// @Param itemId path string true "Menu item ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /customers/{id}/favorites/{itemId} [put]
func (s *Server) addFavorite(c *gin.Context) {
	if err := s.favorites.Add(c, c.Param("id"), c.Param("itemId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Remove menu item from favorites
// @Tags customers
// @Param id path string true "Customer ID"
// @Param itemId path string true "Menu item ID"
// @Success 204
// @Router /customers/{id}/favorites/{itemId} [delete]
func (s *Server) removeFavorite(c *gin.Context) {
	if err := s.favorites.Remove(c, c.Param("id"), c.Param("itemId")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
