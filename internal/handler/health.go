package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shop-admin/backend/internal/model"
)

// Ping godoc
// @Summary Liveness probe
// @Produce json
// @Success 200 {object} model.PingResponse
// @Router /ping [get]
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, model.PingResponse{Message: "pong"})
}

// Root godoc
// @Summary Service banner
// @Produce json
// @Success 200 {object} model.RootResponse
// @Router / [get]
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, model.RootResponse{
		Status:  "ok",
		Message: "shop-admin auth API is running",
	})
}
