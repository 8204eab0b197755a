package inbound

import (
	"context"
	"crypto/subtle"

	"github.com/omeyang/tclink/pkg/config/xpmsconf"
	"github.com/omeyang/tclink/pkg/htng/xparse"
)

// ConfigSource 入站鉴权所需的配置读取面。*xpmsconf.Service 为生产实现。
type ConfigSource interface {
	Get(ctx context.Context, propertyID string) (*xpmsconf.PropertyConfig, error)
	Credentials(ctx context.Context, propertyID string) (*xpmsconf.Credentials, error)
	FindByHotelCode(ctx context.Context, hotelCode string) (string, error)
}

var _ ConfigSource = (*xpmsconf.Service)(nil)

// AuthError 鉴权失败。Reason 进入 SOAP Fault 的
// faultstring（"Authentication Error: <reason>"），不泄露内部细节。
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "inbound: authentication failed: " + e.Reason
}

// Authenticator WSSE UsernameToken 鉴权器。
//
// 按信封头的 HotelCode 定位酒店（兼容直接携带 property-id 的对端），
// 凭据比较使用常数时间。
type Authenticator struct {
	cfg ConfigSource
}

// NewAuthenticator 创建鉴权器。
func NewAuthenticator(cfg ConfigSource) (*Authenticator, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	return &Authenticator{cfg: cfg}, nil
}

// Authenticate 校验信封头并返回解析出的酒店配置。
// 失败返回 *AuthError；配置存储不可用等内部故障返回其他错误。
func (a *Authenticator) Authenticate(ctx context.Context, h xparse.Header) (string, *xpmsconf.PropertyConfig, error) {
	if ctx == nil {
		return "", nil, ErrNilContext
	}
	creds := h.Credentials
	if creds == nil {
		return "", nil, &AuthError{Reason: "missing WSSE credentials"}
	}
	if creds.Username == "" || creds.Password == "" {
		return "", nil, &AuthError{Reason: "incomplete WSSE credentials"}
	}
	if h.HotelCode == "" {
		return "", nil, &AuthError{Reason: "missing hotel code"}
	}

	propertyID, err := a.resolve(ctx, h.HotelCode)
	if err != nil {
		return "", nil, err
	}

	stored, err := a.cfg.Credentials(ctx, propertyID)
	if err != nil {
		return "", nil, err
	}
	if !constantTimeEqual(creds.Username, stored.Username) ||
		!constantTimeEqual(creds.Password, stored.Password) {
		return "", nil, &AuthError{Reason: "invalid credentials"}
	}

	prop, err := a.cfg.Get(ctx, propertyID)
	if err != nil {
		return "", nil, err
	}
	if !prop.Active {
		return "", nil, &AuthError{Reason: "property is inactive"}
	}
	return propertyID, prop, nil
}

// resolve hotel-code 优先；未命中时把标识当作 property-id 兜底。
func (a *Authenticator) resolve(ctx context.Context, code string) (string, error) {
	propertyID, err := a.cfg.FindByHotelCode(ctx, code)
	if err == nil {
		return propertyID, nil
	}
	if _, getErr := a.cfg.Get(ctx, code); getErr == nil {
		return code, nil
	}
	return "", &AuthError{Reason: "unknown hotel"}
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
