// internal/service/delay.go
package service

import (
	"time"

	"github.com/followly/outreach-backend/internal/model"
)

// FollowUpDelayDuration maps a follow-up delay selector to a duration.
// Unknown or empty selectors fall back to two days.
func FollowUpDelayDuration(delay model.FollowUpDelay) time.Duration {
	const day = 24 * time.Hour
	switch delay {
	case model.DelayOneMinute:
		return time.Minute
	case model.DelayThreeMinutes:
		return 3 * time.Minute
	case model.DelayFiveMinutes:
		return 5 * time.Minute
	case model.DelayTwoDays:
		return 2 * day
	case model.DelaySevenDays:
		return 7 * day
	case model.DelayFourteenDays:
		return 14 * day
	case model.DelayOneMonth:
		return 30 * day
	default:
		return 2 * day
	}
}
