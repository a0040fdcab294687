package main

import (
	"log"
	"net/http"
	"safaribuddy/src/db"
	"safaribuddy/src/middlewares"
	"safaribuddy/src/models"
	"safaribuddy/src/types"
	"safaribuddy/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func bookingResponse(b *models.Booking) types.APIResponseBooking {
	res := types.APIResponseBooking{
		ID:              b.ID,
		TourID:          b.TourID,
		Reference:       b.Reference,
		NumberOfPeople:  b.NumberOfPeople,
		TotalAmount:     b.TotalAmount,
		Status:          b.Status,
		PaymentState:    b.PaymentState,
		SpecialRequests: b.SpecialRequests,
		Timestamps:      b.Timestamps,
	}
	if b.Tour != nil {
		res.Tour = &types.APIResponseTour{
			ID:              b.Tour.ID,
			Title:           b.Tour.Title,
			Slug:            b.Tour.Slug,
			Category:        b.Tour.Category,
			Destination:     b.Tour.Destination,
			DurationDays:    b.Tour.DurationDays,
			PricePerPerson:  b.Tour.PricePerPerson,
			MaxParticipants: b.Tour.MaxParticipants,
			SeatsLeft:       b.Tour.SeatsLeft(),
			IsActive:        b.Tour.IsActive,
		}
	}
	return res
}

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	provider := middlewares.RequireRole(types.ROLE_GUIDE, types.ROLE_COMPANY)
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			booking, err := utils.CreateBooking(&body, userId)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"id":                booking.ID,
				"booking_reference": booking.Reference,
				"total_amount":      booking.TotalAmount,
			})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var bookings []models.Booking
			if err := db.
				Model(&models.Booking{}).
				Where(&models.Booking{UserID: userId}).
				Preload("Tour").
				Order("created_at desc").
				Limit(50).
				Find(&bookings).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			data := make([]types.APIResponseBooking, 0, len(bookings))
			for i := range bookings {
				data = append(data, bookingResponse(&bookings[i]))
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			ss := db.Session(&gorm.Session{PrepareStmt: true})
			if err := ss.
				Model(&models.Booking{}).
				Where(&models.Booking{ID: params.ID}).
				Preload("Tour").
				Preload("Payments").
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
				return
			}
			if booking.UserID != userId {
				// Providers can inspect bookings on their own tours.
				var owned int64
				db.
					Model(&models.Tour{}).
					Where("id = ? AND provider_id = ?", booking.TourID, userId).
					Count(&owned)
				if owned == 0 {
					ctx.Status(http.StatusForbidden)
					return
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			if err := utils.CancelBooking(params.ID, userId); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/tours/:id/bookings", provider, func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			providerId := ctx.GetUint("id")
			db := db.GetDb()
			var bookings []models.Booking
			err := db.Transaction(func(tx *gorm.DB) error {
				var tour models.Tour
				if err := tx.
					Where(&models.Tour{ID: params.ID, ProviderID: providerId}).
					First(&tour).
					Error; err != nil {
					return err
				}
				if err := tx.
					Model(&models.Booking{}).
					Where(&models.Booking{TourID: tour.ID}).
					Preload("User").
					Order("created_at desc").
					Find(&bookings).
					Error; err != nil {
					return err
				}
				return nil
			})
			if err != nil {
				log.Printf("[TourBookings] error: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		})
	return g
}
