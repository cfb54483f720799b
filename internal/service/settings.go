package service

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/guild-tickets/internal/domain"
	apperrors "github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

const maxSettingLength = 100

// settingSpec binds one configurable key to the Settings field it writes.
// apply receives a trimmed, non-empty value; an empty value resets the field
// to its default instead.
type settingSpec struct {
	apply func(s *domain.Settings, value string) error
	reset func(s *domain.Settings, defaults domain.Settings)
}

var settingSpecs = map[string]settingSpec{
	"max_tickets": {
		apply: func(s *domain.Settings, value string) error {
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return invalidSetting("max_tickets", value, "must be a whole number of at least 1")
			}
			s.MaxTicketsPerUser = n
			return nil
		},
		reset: func(s *domain.Settings, d domain.Settings) { s.MaxTicketsPerUser = d.MaxTicketsPerUser },
	},
	"category_name": {
		apply: stringSetting("category_name", func(s *domain.Settings) *string { return &s.TicketCategoryName }),
		reset: func(s *domain.Settings, d domain.Settings) { s.TicketCategoryName = d.TicketCategoryName },
	},
	"logs_channel": {
		apply: stringSetting("logs_channel", func(s *domain.Settings) *string { return &s.LogsChannelName }),
		reset: func(s *domain.Settings, d domain.Settings) { s.LogsChannelName = d.LogsChannelName },
	},
	"ticket_prefix": {
		apply: stringSetting("ticket_prefix", func(s *domain.Settings) *string { return &s.TicketPrefix }),
		reset: func(s *domain.Settings, d domain.Settings) { s.TicketPrefix = d.TicketPrefix },
	},
	"staff_role_name": {
		apply: stringSetting("staff_role_name", func(s *domain.Settings) *string { return &s.StaffRoleName }),
		reset: func(s *domain.Settings, d domain.Settings) { s.StaffRoleName = d.StaffRoleName },
	},
	"auto_create_staff_role": {
		apply: func(s *domain.Settings, value string) error {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return invalidSetting("auto_create_staff_role", value, "must be true or false")
			}
			s.AutoCreateStaffRole = b
			return nil
		},
		reset: func(s *domain.Settings, d domain.Settings) { s.AutoCreateStaffRole = d.AutoCreateStaffRole },
	},
}

// SettingKeys lists the configurable keys in a stable order.
func SettingKeys() []string {
	return []string{"max_tickets", "category_name", "logs_channel", "ticket_prefix", "staff_role_name", "auto_create_staff_role"}
}

// applySetting writes key=value into s. Unknown keys are NOT_FOUND.
func applySetting(s *domain.Settings, defaults domain.Settings, key, value string) error {
	spec, ok := settingSpecs[key]
	if !ok {
		return apperrors.NewNotFound("setting", map[string]any{"key": key})
	}
	value = strings.TrimSpace(value)
	if value == "" {
		spec.reset(s, defaults)
		return nil
	}
	return spec.apply(s, value)
}

func stringSetting(key string, field func(*domain.Settings) *string) func(*domain.Settings, string) error {
	return func(s *domain.Settings, value string) error {
		if utf8.RuneCountInString(value) > maxSettingLength {
			return invalidSetting(key, value, "must be at most 100 characters")
		}
		*field(s) = value
		return nil
	}
}

func invalidSetting(key, value, reason string) error {
	return apperrors.NewValidationError(key+" "+reason, map[string]any{"key": key, "value": value})
}
