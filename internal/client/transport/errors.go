package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/dmitrijs2005/nextshape/internal/common"
)

func networkError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &common.Error{Kind: common.KindTimeout, Message: common.MsgTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &common.Error{Kind: common.KindTimeout, Message: common.MsgTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &common.Error{Kind: common.KindTransport, Message: "request cancelled", Err: err}
	}
	return &common.Error{Kind: common.KindTransport, Message: common.MsgUnavailable, Err: err}
}

// statusError maps a non-2xx status to a tagged error. A 4xx without a server
// message keeps Message empty so callers can apply their own fallback.
func statusError(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}

	msg := serverMessage(body)
	cause := fmt.Errorf("server responded %d %s", code, http.StatusText(code))

	switch {
	case code >= 500:
		if msg == "" {
			msg = common.MsgUnavailable
		}
		return &common.Error{Kind: common.KindTransport, Message: msg, Status: code, Err: cause}
	case code == http.StatusNotFound:
		return &common.Error{Kind: common.KindNotFound, Message: msg, Status: code, Err: cause}
	case code >= 400:
		return &common.Error{Kind: common.KindValidation, Message: msg, Status: code, Err: cause}
	default:
		if msg == "" {
			msg = common.MsgRequestFailed
		}
		return &common.Error{Kind: common.KindTransport, Message: msg, Status: code, Err: cause}
	}
}

func expiredError() error {
	return &common.Error{
		Kind:    common.KindAuthorizationExpired,
		Message: common.MsgSessionExpired,
		Status:  http.StatusUnauthorized,
	}
}
