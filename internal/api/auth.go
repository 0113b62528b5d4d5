package api

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/internal/store"
	"github.com/cosmocart/cosmocart/pkg/models"
)

var mobileRe = regexp.MustCompile(`^\d{10}$`)

type sendOTPRequest struct {
	MobileNumber string `json:"mobile_number"`
}

type verifyOTPRequest struct {
	MobileNumber string `json:"mobile_number"`
	OTP          string `json:"otp"`
	Name         string `json:"name"`
}

type loginResponse struct {
	Status string      `json:"status"`
	Token  string      `json:"token"`
	User   models.User `json:"user"`
}

// generateOTP returns a six digit login code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Server) sendOTP(c echo.Context) error {
	var req sendOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !mobileRe.MatchString(req.MobileNumber) {
		return echo.NewHTTPError(http.StatusBadRequest, "mobile_number must be 10 digits")
	}

	otp, err := generateOTP()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not generate otp")
	}
	if err := s.deps.Auth.SaveOTP(c.Request().Context(), req.MobileNumber, otp); err != nil {
		log.Error().Err(err).Msg("failed to store otp")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not store otp")
	}

	// Stands in for an SMS gateway. The code only ever appears in server
	// logs, never in the response.
	log.Info().Str("mobile", req.MobileNumber).Str("otp", otp).Msg("login code issued")

	return c.JSON(http.StatusOK, map[string]string{"status": "otp_sent"})
}

func (s *Server) verifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !mobileRe.MatchString(req.MobileNumber) {
		return echo.NewHTTPError(http.StatusBadRequest, "mobile_number must be 10 digits")
	}

	ctx := c.Request().Context()
	if err := s.deps.Auth.ConsumeOTP(ctx, req.MobileNumber, req.OTP); err != nil {
		if errors.Is(err, store.ErrInvalidOTP) {
			return echo.NewHTTPError(http.StatusUnauthorized, "incorrect otp")
		}
		log.Error().Err(err).Msg("otp verification failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not verify otp")
	}

	name := req.Name
	if name == "" {
		name = "Guest"
	}
	user, err := s.deps.Auth.UpsertUser(ctx, req.MobileNumber, name)
	if err != nil {
		log.Error().Err(err).Msg("user upsert failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create user")
	}

	token, err := s.deps.Tokens.Issue(*user)
	if err != nil {
		log.Error().Err(err).Msg("token issue failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}

	return c.JSON(http.StatusOK, loginResponse{
		Status: "success",
		Token:  token,
		User:   *user,
	})
}
