package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/common"
)

// Server paths, relative to the base URL.
const (
	PathRegister            = "register/"
	PathLogin               = "login/"
	PathLogout              = "logout/"
	PathCheckAuthentication = "check-authentication/"
	PathRefreshAccess       = "refresh-access/"
	PathProfile             = "profile/"
	PathDeleteAccount       = "delete-account/"
	PathSendCodePrefix      = "send-code-"
	PathVerifyCode          = "verify-code/"
	PathResetPassword       = "reset-password/"
	PathCalculateCalories   = "calculate-calories/"
	PathCalculateIMC        = "calculate-imc/"
	PathProgressRecords     = "progress-records/"
)

// RecordPath is the path of a single progress record.
func RecordPath(id int64) string {
	return fmt.Sprintf("%s%d/", PathProgressRecords, id)
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (models.Outcome, error) {
	return c.outcome(ctx, call{method: http.MethodPost, path: PathRegister, body: req})
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out struct {
		Data   models.Identity `json:"data"`
		Access string          `json:"access"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.raw(ctx, call{method: http.MethodPost, path: PathLogin, body: body, noRefresh: true}, &out); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Identity: out.Data, Access: out.Access}, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: PathLogout}, nil)
}

func (c *HTTPClient) CheckAuthentication(ctx context.Context) (bool, error) {
	var out struct {
		Authenticated *bool `json:"authenticated"`
	}
	if err := c.do(ctx, call{method: http.MethodGet, path: PathCheckAuthentication}, &out); err != nil {
		return false, err
	}
	if out.Authenticated == nil {
		return true, nil
	}
	return *out.Authenticated, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, fields map[string]any) (models.Identity, error) {
	var id models.Identity
	err := c.do(ctx, call{method: http.MethodPatch, path: PathProfile, body: fields}, &id)
	return id, err
}

func (c *HTTPClient) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodDelete, path: PathDeleteAccount}, nil)
}

func (c *HTTPClient) SendCode(ctx context.Context, email string, purpose models.CodePurpose) (models.Outcome, error) {
	if !purpose.Valid() {
		return models.Outcome{}, common.Errorf(common.KindValidation, "unknown code purpose %q", purpose)
	}
	path := PathSendCodePrefix + string(purpose) + "/"
	return c.outcome(ctx, call{method: http.MethodPost, path: path, body: map[string]string{"email": email}})
}

func (c *HTTPClient) VerifyCode(ctx context.Context, email, code string) (VerifyResult, error) {
	var res VerifyResult
	env, err := c.envelope(ctx, call{
		method: http.MethodPost,
		path:   PathVerifyCode,
		body:   map[string]string{"email": email, "code": code},
	})
	if err != nil {
		return res, err
	}
	res.Outcome = env.outcome()

	var data struct {
		Valid *bool `json:"valid"`
	}
	if len(env.Data) > 0 {
		if err := decodeJSON(env.Data, &data); err != nil {
			return res, err
		}
	}
	if data.Valid != nil {
		res.Valid = *data.Valid
	} else {
		res.Valid = res.Success
	}
	return res, nil
}

func (c *HTTPClient) ResetPassword(ctx context.Context, email, newPassword string) (models.Outcome, error) {
	body := map[string]string{"email": email, "new_password": newPassword}
	return c.outcome(ctx, call{method: http.MethodPost, path: PathResetPassword, body: body})
}

func (c *HTTPClient) CalculateCalories(ctx context.Context, req models.CaloriesRequest) (CaloriesResult, error) {
	var res CaloriesResult
	env, err := c.envelope(ctx, call{method: http.MethodPost, path: PathCalculateCalories, body: req})
	if err != nil {
		return res, err
	}
	res.Outcome = env.outcome()
	if err := decodeJSON(env.Data, &res.Values); err != nil {
		return res, err
	}
	return res, nil
}

func (c *HTTPClient) CalculateIMC(ctx context.Context, req models.MeasurementRequest) (models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := c.do(ctx, call{method: http.MethodPost, path: PathCalculateIMC, body: req}, &rec)
	return rec, err
}

func (c *HTTPClient) ListRecords(ctx context.Context) ([]models.ProgressRecord, error) {
	var list []models.ProgressRecord
	err := c.do(ctx, call{method: http.MethodGet, path: PathProgressRecords}, &list)
	return list, err
}

func (c *HTTPClient) UpdateRecord(ctx context.Context, id int64, fields map[string]any) (models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := c.do(ctx, call{method: http.MethodPatch, path: RecordPath(id), body: fields}, &rec)
	return rec, err
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodDelete, path: RecordPath(id)}, nil)
}
