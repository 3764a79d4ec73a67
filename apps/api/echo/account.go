package echoapi

import (
	"context"
	"net/http"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tasnifu/core"
	"github.com/trezcool/tasnifu/core/account"
	googlesvc "github.com/trezcool/tasnifu/services/google"
)

var errAcctNotFoundInCtx = errors.New("account object not found in echo.Context")

// GoogleClient resolves Google OAuth tokens and reCAPTCHA challenges.
type GoogleClient interface {
	GetUserInfo(ctx context.Context, accessToken string) (googlesvc.UserInfo, error)
	VerifyCaptcha(ctx context.Context, token string) error
}

type accountApi struct {
	svc        account.Service
	google     GoogleClient
	validate   *validator.Validate
	translator ut.Translator
}

func registerAccountAPI(
	g *echo.Group,
	auth []echo.MiddlewareFunc,
	svc account.Service,
	google GoogleClient,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := accountApi{
		svc:        svc,
		google:     google,
		validate:   validate,
		translator: translator,
	}

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	authg := g.Group("/auth")
	authg.POST("/login", api.login)
	authg.POST("/google", api.googleLogin)
	authg.POST("/register", api.register)
	authg.POST("/password-reset", api.resetPassword)
	authg.POST("/password-reset-confirm", api.confirmPasswordReset)
	authg.POST("/token-refresh", api.refreshToken, auth...)

	// own profile
	pg := g.Group("/profile", auth...)
	pg.GET("", api.retrieveProfile)
	pg.PUT("", api.updateProfile)

	// account administration
	ag := g.Group("/accounts", auth...)
	ag.GET("", api.query, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/roles", api.queryRoles, adminMiddleware())

	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	// mutations are refused with 423 while another admin holds the edit lock
	dg.PUT("", api.update, adminMiddleware(), checkLockMiddleware(svc))
	dg.DELETE("", api.destroy, adminMiddleware(), checkLockMiddleware(svc))
	dg.POST("/lock", api.lock, adminMiddleware())
	dg.DELETE("/lock", api.unlock, adminMiddleware())
}

// Handlers

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if core.Conf.RecaptchaSecret != "" {
		if err := api.google.VerifyCaptcha(ctx.Request().Context(), data.CaptchaToken); err != nil {
			if errors.Cause(err) == googlesvc.ErrCaptchaFailed {
				return core.NewValidationError(err)
			}
			return errors.Wrap(err, "verifying captcha")
		}
	}

	acct, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrInvalidCredentials:
			return echo.NewHTTPError(http.StatusUnauthorized, account.ErrInvalidCredentials.Error())
		case account.ErrAccountLocked:
			return echo.NewHTTPError(http.StatusLocked, account.ErrAccountLocked.Error())
		}
		return errors.Wrap(err, "authenticating")
	}

	return api.loginResponse(ctx, acct)
}

func (api *accountApi) googleLogin(ctx echo.Context) error {
	var data GoogleLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GoogleLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	info, err := api.google.GetUserInfo(ctx.Request().Context(), data.AccessToken)
	if err != nil {
		if errors.Cause(err) == googlesvc.ErrInvalidAccessToken {
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "resolving Google user info")
	}

	acct, err := api.svc.OAuthLogin(ctx.Request().Context(), info.Email, info.Name, info.Picture)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrOAuthStudent, account.ErrOAuthIneligible:
			return echo.NewHTTPError(http.StatusForbidden, errors.Cause(err).Error())
		}
		return errors.Wrap(err, "signing in with Google")
	}

	return api.loginResponse(ctx, acct)
}

func (api *accountApi) loginResponse(ctx echo.Context, acct account.Account) error {
	token, err := GenerateToken(GetAccountClaims(acct))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Account: &acct})
}

func (api *accountApi) register(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	acct, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering account")
	}
	return ctx.JSON(http.StatusCreated, acct)
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == account.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data account.ResetAccountPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetAccountPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *accountApi) retrieveProfile(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) updateProfile(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	var data account.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	acct, err = api.svc.UpdateProfile(ctx.Request().Context(), acct.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	ctx.Set(contextAccountKey, acct)
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) query(ctx echo.Context) error {
	filter := new(account.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []account.Account{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	accts, err := api.svc.Filter(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if accts == nil {
		accts = []account.Account{}
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id := ctx.Param("id")
	if id != claims.Subject && !claims.IsAdmin {
		return errHttpNotFound
	}

	acct, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding account by ID")
	}
	return ctx.JSON(http.StatusOK, acct)
}

// update lets an admin edit any account's profile fields.
func (api *accountApi) update(ctx echo.Context) error {
	var data account.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acct, err := api.svc.UpdateProfile(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) destroy(ctx echo.Context) error {
	// Say No to Suicide! ctxAccount cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id := ctx.Param("id")
	if id == claims.Subject {
		return errHttpForbidden
	}

	if _, err = api.svc.GetByID(ctx.Request().Context(), id); err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding account by ID")
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxAccount cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, claims.Subject); i < len(query.IDs) {
		if match := query.IDs[i]; claims.Subject == match {
			return errHttpForbidden
		}
	}

	if err = api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting accounts")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, account.Roles)
}

func (api *accountApi) lock(ctx echo.Context) error {
	if err := api.svc.AcquireEditLock(ctx.Request().Context(), ctx.Param("id")); err != nil {
		switch errors.Cause(err) {
		case account.ErrEditLockHeld:
			return echo.NewHTTPError(http.StatusLocked, account.ErrEditLockHeld.Error())
		case account.ErrNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "acquiring edit lock")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "lock acquired"})
}

func (api *accountApi) unlock(ctx echo.Context) error {
	if err := api.svc.ReleaseEditLock(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "releasing edit lock")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "lock released"})
}

type (
	LoginRequest struct {
		Email        string `json:"email" validate:"required,email"`
		Password     string `json:"password" validate:"required"`
		CaptchaToken string `json:"captcha_token"`
	}

	GoogleLoginRequest struct {
		AccessToken string `json:"access_token" validate:"required"`
	}

	LoginResponse struct {
		Token   string           `json:"token"`
		Account *account.Account `json:"account,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (gr *GoogleLoginRequest) Validate(validate *validator.Validate) error {
	gr.AccessToken = core.CleanString(gr.AccessToken)
	return validate.Struct(gr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
