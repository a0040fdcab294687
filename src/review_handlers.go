package main

import (
	"errors"
	"log"
	"net/http"
	"safaribuddy/src/db"
	"safaribuddy/src/models"
	"safaribuddy/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func reviewHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/reviews", func(ctx *gin.Context) {
			var body types.CreateReviewRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var review models.Review
			err := db.Transaction(func(tx *gorm.DB) error {
				var booking models.Booking
				if err := tx.
					Where(&models.Booking{ID: body.BookingID, UserID: userId}).
					First(&booking).
					Error; err != nil {
					return errors.New("booking not found")
				}
				if booking.PaymentState != types.BOOKING_PAID {
					return errors.New("only paid bookings can be reviewed")
				}
				var existing int64
				tx.
					Model(&models.Review{}).
					Where(&models.Review{BookingID: booking.ID}).
					Count(&existing)
				if existing > 0 {
					return errors.New("booking has already been reviewed")
				}
				review = models.Review{
					TourID:    booking.TourID,
					UserID:    userId,
					BookingID: booking.ID,
					Rating:    uint(body.Rating),
					Comment:   body.Comment,
				}
				if err := tx.Create(&review).Error; err != nil {
					return err
				}
				return nil
			})
			if err != nil {
				log.Printf("[CreateReview] error: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": review.ID})
		}).
		DELETE("/reviews/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			res := db.
				Where(&models.Review{ID: params.ID, UserID: userId}).
				Delete(&models.Review{})
			if res.Error != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
