package main

import (
	"log"
	"net/http"
	"safaribuddy/src/db"
	"safaribuddy/src/middlewares"
	"safaribuddy/src/models"
	"safaribuddy/src/models/scopes"
	"safaribuddy/src/types"
	"safaribuddy/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// publicTourRoutes exposes the catalogue without authentication.
func publicTourRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/tours", func(ctx *gin.Context) {
			var query types.TourQueryFilters
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			limit := query.Limit
			if limit < 1 || limit > 100 {
				limit = 20
			}
			db := db.GetDb()
			var tours []models.Tour
			tx := db.
				Model(&models.Tour{}).
				Scopes(scopes.WithActive)
			if query.Category != "" {
				tx = tx.Where("category = ?", query.Category)
			}
			if query.Destination != "" {
				tx = tx.Where("destination ILIKE ?", "%"+query.Destination+"%")
			}
			if query.MinPrice > 0 {
				tx = tx.Where("price_per_person >= ?", query.MinPrice)
			}
			if query.MaxPrice > 0 {
				tx = tx.Where("price_per_person <= ?", query.MaxPrice)
			}
			var count int64
			tx.Count(&count)
			if err := tx.
				Order("start_date asc").
				Offset(query.Skip).
				Limit(limit).
				Find(&tours).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			data := make([]types.APIResponseTour, 0, len(tours))
			for _, t := range tours {
				data = append(data, types.APIResponseTour{
					ID:              t.ID,
					Title:           t.Title,
					Slug:            t.Slug,
					Category:        t.Category,
					Destination:     t.Destination,
					DurationDays:    t.DurationDays,
					PricePerPerson:  t.PricePerPerson,
					MaxParticipants: t.MaxParticipants,
					SeatsLeft:       t.SeatsLeft(),
					IsActive:        t.IsActive,
				})
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": count})
		}).
		GET("/tours/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var tour models.Tour
			if err := db.
				Model(&models.Tour{}).
				Scopes(scopes.WithID(params.ID)).
				Preload("Provider").
				First(&tour).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "tour not found"})
				return
			}
			var stats struct {
				Rating float64
				Count  int64
			}
			db.
				Model(&models.Review{}).
				Where(&models.Review{TourID: tour.ID}).
				Select("COALESCE(AVG(rating), 0) as rating", "COUNT(id) as count").
				Scan(&stats)
			ctx.JSON(http.StatusOK, gin.H{
				"data":         tour,
				"rating":       stats.Rating,
				"review_count": stats.Count,
				"seats_left":   tour.SeatsLeft(),
			})
		}).
		GET("/tours/:id/reviews", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var reviews []models.Review
			if err := db.
				Model(&models.Review{}).
				Where(&models.Review{TourID: params.ID}).
				Preload("User").
				Order("created_at desc").
				Limit(50).
				Find(&reviews).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reviews, "count": len(reviews)})
		})
	return apiv1
}

func tourHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	provider := middlewares.RequireRole(types.ROLE_GUIDE, types.ROLE_COMPANY)
	g.
		POST("/tours", provider, func(ctx *gin.Context) {
			var body types.CreateTourRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			providerId := ctx.GetUint("id")
			id, err := utils.CreateTour(&body, providerId)
			if err != nil {
				log.Printf("[CreateTour] error: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		GET("/tours/own", provider, func(ctx *gin.Context) {
			providerId := ctx.GetUint("id")
			db := db.GetDb()
			var tours []models.Tour
			if err := db.
				Model(&models.Tour{}).
				Scopes(scopes.ForProvider(providerId)).
				Order("created_at desc").
				Find(&tours).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tours, "count": len(tours)})
		}).
		PUT("/tours/:id", provider, func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateTourRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			providerId := ctx.GetUint("id")
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var tour models.Tour
				if err := tx.
					Scopes(scopes.WithID(params.ID), scopes.ForProvider(providerId)).
					First(&tour).
					Error; err != nil {
					return err
				}
				updates := map[string]any{}
				if body.Title != nil {
					updates["title"] = *body.Title
				}
				if body.Description != nil {
					updates["description"] = *body.Description
				}
				if body.PricePerPerson != nil {
					updates["price_per_person"] = *body.PricePerPerson
				}
				if body.IsActive != nil {
					updates["is_active"] = *body.IsActive
				}
				if len(updates) == 0 {
					return nil
				}
				if err := tx.
					Model(&models.Tour{}).
					Scopes(scopes.WithID(params.ID)).
					Updates(updates).
					Error; err != nil {
					return err
				}
				return nil
			})
			if err != nil {
				log.Printf("[UpdateTour] error: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		DELETE("/tours/:id", provider, func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			providerId := ctx.GetUint("id")
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Model(&models.Tour{}).
					Scopes(scopes.WithID(params.ID), scopes.ForProvider(providerId)).
					Update("is_active", false).
					Error; err != nil {
					return err
				}
				return nil
			})
			if err != nil {
				log.Printf("[DeactivateTour] error: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
