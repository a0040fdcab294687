package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"safaribuddy/src/db"
	"safaribuddy/src/lib"
	"safaribuddy/src/models"
	"safaribuddy/src/types"
	"safaribuddy/src/utils"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// registrationStatus is the account status a fresh signup starts with.
// Providers stay pending until they are vetted; tourists book right away.
func registrationStatus(role types.UserRole) types.UserStatus {
	if role == types.ROLE_GUIDE || role == types.ROLE_COMPANY {
		return types.USER_PENDING
	}
	return types.USER_ACTIVE
}

func AuthRegister(ctx *gin.Context) (id *uint, status int, err error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	role := types.ROLE_TOURIST
	switch types.UserRole(body.Role) {
	case "":
	case types.ROLE_TOURIST, types.ROLE_GUIDE, types.ROLE_COMPANY:
		role = types.UserRole(body.Role)
	default:
		return nil, http.StatusBadRequest, errors.New("unknown role")
	}

	phone, err := lib.NormalizePhoneNumber(body.Phone)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	var newUser models.User
	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.User
		if err := tx.
			Model(&models.User{}).
			Select("id").
			Where("email = ? OR phone = ?", body.Email, phone).
			First(&existing).
			Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("could not complete transaction")
			}
		}
		if existing.ID > 0 {
			err := errors.New("user is already registered in the system. Please proceed to Log In")
			log.Printf("error: %s\n", err.Error())
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		newUser = models.User{
			Email:        body.Email,
			FullName:     body.FullName,
			Phone:        phone,
			PasswordHash: string(hash),
			Role:         role,
			Status:       registrationStatus(role),
		}
		if err := tx.Create(&newUser).Error; err != nil {
			log.Printf("Error creating user: %s\n", err.Error())
			return fmt.Errorf("error creating user: %s", body.Email)
		}
		return nil
	})
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return &newUser.ID, http.StatusOK, nil
}

func AuthLogin(ctx *gin.Context) (token *string, status int, err error) {
	var body types.LoginRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}

	db := db.GetDb()
	var user models.User
	if err = db.
		Model(&models.User{}).
		Where(&models.User{Email: body.Email}).
		First(&user).
		Error; err != nil {
		log.Printf("error: %s\n", err.Error())
		return nil, http.StatusNotFound, errors.New("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		return nil, http.StatusUnauthorized, errors.New("invalid email or password")
	}
	// Pending providers can log in and prepare their listings; only a
	// suspension locks the account out.
	if user.Status == types.USER_SUSPENDED {
		return nil, http.StatusForbidden, errors.New("account is suspended")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.User{}).
			Where("id", user.ID).
			Update("last_active", time.Now()).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error logging in user [%d]: %s\n", user.ID, err.Error())
		return nil, http.StatusBadRequest, err
	}

	jwt, err := utils.GenerateJWT(&user)
	if err != nil {
		log.Printf("Error generating token for user [%d]: %s\n", user.ID, err.Error())
		return nil, http.StatusInternalServerError, errors.New("could not complete login")
	}

	rd := lib.GetRedisClient()
	if rd != nil {
		if _, err := rd.JSONSet(ctx, fmt.Sprintf("%d:user", user.ID), "$", &user).Result(); err != nil {
			log.Printf("[redis] Error updating user cache: %s\n", err.Error())
		}
	}

	return &jwt, http.StatusOK, nil
}
