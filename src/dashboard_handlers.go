package main

import (
	"net/http"
	"safaribuddy/src/db"
	"safaribuddy/src/middlewares"
	"safaribuddy/src/models"
	"safaribuddy/src/models/scopes"
	"safaribuddy/src/types"
	"time"

	"github.com/gin-gonic/gin"
)

func dashboardHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	provider := middlewares.RequireRole(types.ROLE_GUIDE, types.ROLE_COMPANY)
	g.
		GET("/dashboard", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var upcoming []models.Booking
			if err := db.
				Model(&models.Booking{}).
				Joins("Tour").
				Where("bookings.user_id = ? AND bookings.status IN ?", userId, []types.BookingStatus{
					types.BOOKING_PENDING,
					types.BOOKING_CONFIRMED,
				}).
				Where("\"Tour\".start_date > ?", time.Now()).
				Order("\"Tour\".start_date asc").
				Limit(10).
				Find(&upcoming).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			var stats types.TouristDashboard
			stats.Upcoming = int64(len(upcoming))
			db.
				Model(&models.Booking{}).
				Where(&models.Booking{UserID: userId}).
				Count(&stats.Bookings)
			db.
				Model(&models.Booking{}).
				Where(&models.Booking{UserID: userId, Status: types.BOOKING_COMPLETED}).
				Count(&stats.Completed)
			db.
				Model(&models.Review{}).
				Where(&models.Review{UserID: userId}).
				Count(&stats.Reviews)
			ctx.JSON(http.StatusOK, gin.H{
				"upcoming_bookings": upcoming,
				"stats":             stats,
			})
		}).
		GET("/dashboard/provider", provider, func(ctx *gin.Context) {
			providerId := ctx.GetUint("id")
			db := db.GetDb()
			var dash types.ProviderDashboard
			db.
				Model(&models.Booking{}).
				Joins("JOIN tours ON tours.id = bookings.tour_id").
				Where("tours.provider_id = ? AND bookings.payment_status = ?", providerId, types.BOOKING_PAID).
				Select("COUNT(bookings.id) as bookings", "COALESCE(SUM(bookings.total_amount), 0) as revenue").
				Scan(&dash)
			db.
				Model(&models.Tour{}).
				Scopes(scopes.ForProvider(providerId)).
				Count(&dash.Tours)
			db.
				Model(&models.Tour{}).
				Scopes(scopes.ForProvider(providerId), scopes.WithActive).
				Count(&dash.ActiveTours)
			db.
				Model(&models.Review{}).
				Joins("JOIN tours ON tours.id = reviews.tour_id").
				Where("tours.provider_id = ?", providerId).
				Select("COALESCE(AVG(reviews.rating), 0)").
				Scan(&dash.AvgRating)
			var pending int64
			db.
				Model(&models.Booking{}).
				Joins("JOIN tours ON tours.id = bookings.tour_id").
				Where("tours.provider_id = ?", providerId).
				Scopes(scopes.WithPendingStatus).
				Count(&pending)
			ctx.JSON(http.StatusOK, gin.H{
				"data":             dash,
				"pending_bookings": pending,
			})
		})
	return g
}
