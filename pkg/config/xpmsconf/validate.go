package xpmsconf

import (
	"context"
	"regexp"
	"strings"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

// defaultHotelCodePattern hotel-code 的默认格式。
const defaultHotelCodePattern = `^[A-Za-z0-9_-]{1,20}$`

// minPasswordLength WSSE 口令最小长度。
const minPasswordLength = 8

// Validate 校验酒店配置，返回全部问题（空切片表示通过）。
//
// 规则：hotel-code 匹配格式（validation.hotel_code.pattern，
// 缺省用内置格式）、口令长度 ≥ 8、对端地址必须 https、
// 启用的消息类型必须是已识别值、环境取值合法。
// 酒店未配置时返回 ErrPropertyNotFound。
func (s *Service) Validate(ctx context.Context, propertyID string) ([]Issue, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	raw, err := s.rawProperty(propertyID)
	if err != nil {
		return nil, err
	}
	g, err := s.GetGlobal(ctx)
	if err != nil {
		return nil, err
	}

	issues := []Issue{}

	issues = append(issues, validateHotelCode(raw.HotelCode, g.Validation.HotelCode)...)

	if len(raw.Password) < minPasswordLength {
		issues = append(issues, Issue{
			Field: "password",
			Rule:  "length must be >= 8",
			Value: len(raw.Password),
		})
	}
	if raw.Username == "" {
		issues = append(issues, Issue{
			Field: "username",
			Rule:  "must not be empty",
			Value: "",
		})
	}

	env := xmsg.Environment(raw.Environment)
	if !env.Valid() {
		issues = append(issues, Issue{
			Field: "environment",
			Rule:  "must be production or test",
			Value: raw.Environment,
		})
	} else if endpoint, err := s.Endpoint(ctx, env); err != nil {
		issues = append(issues, Issue{
			Field: "endpoints." + string(env),
			Rule:  "must be configured",
			Value: "",
		})
	} else if !strings.HasPrefix(endpoint, "https://") {
		issues = append(issues, Issue{
			Field: "endpoints." + string(env),
			Rule:  "must use https",
			Value: endpoint,
		})
	}

	for _, t := range raw.EnabledTypes {
		if !xmsg.MessageType(t).IsBusiness() {
			issues = append(issues, Issue{
				Field: "enabled_types",
				Rule:  "unrecognized message type",
				Value: t,
			})
		}
	}

	return issues, nil
}

func validateHotelCode(code string, rule CodeRule) []Issue {
	var issues []Issue

	pattern := rule.Pattern
	if pattern == "" {
		pattern = defaultHotelCodePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(defaultHotelCodePattern)
	}
	if !re.MatchString(code) {
		issues = append(issues, Issue{
			Field: "hotel_code",
			Rule:  "must match " + pattern,
			Value: code,
		})
		return issues
	}

	if rule.MinLength > 0 && len(code) < rule.MinLength {
		issues = append(issues, Issue{
			Field: "hotel_code",
			Rule:  "too short",
			Value: code,
		})
	}
	if rule.MaxLength > 0 && len(code) > rule.MaxLength {
		issues = append(issues, Issue{
			Field: "hotel_code",
			Rule:  "too long",
			Value: code,
		})
	}
	return issues
}
