package controllers

import (
	"net/http"
	"strconv"

	"github.com/ActorLancer/Food-Info-Trace/services"

	"github.com/gin-gonic/gin"
)

type FoodRecordController struct {
	Records      *services.FoodRecordService
	Verification *services.VerificationService
}

func NewFoodRecordController(records *services.FoodRecordService, verification *services.VerificationService) *FoodRecordController {
	return &FoodRecordController{Records: records, Verification: verification}
}

func respondError(c *gin.Context, err error) {
	ae := services.AsAppError(err)
	_ = c.Error(err)
	c.JSON(ae.StatusCode(), gin.H{"status": "error", "message": ae.Message})
}

// POST /api/food-records
func (fc *FoodRecordController) Create(c *gin.Context) {
	var req services.CreateFoodRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request body: " + err.Error()})
		return
	}
	rec, err := fc.Records.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": "food record " + rec.ProductID + " created",
	})
}

// GET /api/food-records?page=1&page_size=10
func (fc *FoodRecordController) List(c *gin.Context) {
	page, err := queryInt(c, "page", services.DefaultPage)
	if err != nil {
		respondError(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", services.DefaultPageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	out, err := fc.Records.List(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/food-records/:productId
func (fc *FoodRecordController) Get(c *gin.Context) {
	out, err := fc.Records.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		respondError(c, err)
		return
	}
	// metadata_json must reach the client byte for byte
	c.PureJSON(http.StatusOK, out)
}

// GET /api/food-records/:productId/verify
func (fc *FoodRecordController) Verify(c *gin.Context) {
	out, err := fc.Verification.Verify(c.Request.Context(), c.Param("productId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/food-records/:productId/verifications
func (fc *FoodRecordController) Verifications(c *gin.Context) {
	out, err := fc.Verification.History(c.Request.Context(), c.Param("productId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": c.Param("productId"), "items": out})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, services.InvalidInput("%s must be an integer", key)
	}
	return n, nil
}
