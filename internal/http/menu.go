package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"canteen/internal/domain"
	"canteen/internal/repository"
)

type menuItemReq struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	PrepMinutes int             `json:"prep_minutes"`
	Available   *bool           `json:"available"`
}

func (r menuItemReq) toDomain(id string) domain.MenuItem {
	available := true
	if r.Available != nil {
		available = *r.Available
	}
	return domain.MenuItem{
		ID:          id,
		Name:        r.Name,
		Category:    r.Category,
		Price:       r.Price,
		PrepMinutes: r.PrepMinutes,
		Available:   available,
	}
}

// @Summary Create menu item
// @Tags menu
// @Accept json
// @Produce json
// @Param X-Role header string true "admin"
// @Param input body menuItemReq true "Menu item"
// @Success 201 {object} domain.MenuItem
// @Failure 400 {object} map[string]string
// @Router /menu [post]
func (s *Server) createMenuItem(c *gin.Context) {
	var req menuItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := s.menu.Create(c, req.toDomain(""))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// @Summary Get menu item
// @Tags menu
// @Produce json
// @Param id path string true "Menu item ID"
// @Success 200 {object} domain.MenuItem
// @Failure 404 {object} map[string]string
// @Router /menu/{id} [get]
func (s *Server) getMenuItem(c *gin.Context) {
	m, err := s.menu.GetByID(c, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Summary Update menu item
// @Tags menu
// @Accept json
// @Produce json
// @Param id path string true "Menu item ID"
// @Param input body menuItemReq true "Update"
// @Success 200 {object} domain.MenuItem
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /menu/{id} [put]
func (s *Server) updateMenuItem(c *gin.Context) {
	var req menuItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := s.menu.Update(c, req.toDomain(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// @Summary Delete menu item
// @Tags menu
// @Param id path string true "Menu item ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /menu/{id} [delete]
func (s *Server) deleteMenuItem(c *gin.Context) {
	if err := s.menu.Delete(c, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List menu
// @Tags menu
// @Produce json
// @Param q query string false "Name contains"
// @Param category query string false "Category"
// @Param min_price query number false "Min price"
// @Param max_price query number false "Max price"
// @Param available query bool false "Only available"
// @Success 200 {array} domain.MenuItem
// @Router /menu [get]
func (s *Server) listMenu(c *gin.Context) {
	f := repository.MenuFilter{
		NameSubstring: c.Query("q"),
		Category:      c.Query("category"),
	}
	if v := c.Query("min_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MinPrice = &x
		}
	}
	if v := c.Query("max_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MaxPrice = &x
		}
	}
	if v := c.Query("available"); v != "" {
		f.OnlyAvailable, _ = strconv.ParseBool(v)
	}
	list, err := s.menu.List(c, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
