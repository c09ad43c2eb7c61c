// Package quota вычисляет месячный расход и остаток квоты подарков.
package quota

import (
	"time"

	"github.com/mmeshcher/memberclub/internal/model"
)

// MonthWindow возвращает полуинтервал [начало месяца, начало следующего месяца)
// для календарного месяца, содержащего now, в часовом поясе now.
func MonthWindow(now time.Time) (time.Time, time.Time) {
	y, m, _ := now.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// Remaining возвращает остаток квоты при использовании used единиц.
// Nil означает отсутствие лимита. Результат никогда не бывает отрицательным.
func Remaining(monthlyQuota *int, used int) *int {
	if monthlyQuota == nil {
		return nil
	}
	left := *monthlyQuota - used
	if left < 0 {
		left = 0
	}
	return &left
}

// RemainingFor возвращает остаток квоты подарка.
func RemainingFor(g model.Gift, used int) *int {
	return Remaining(g.MonthlyQuota, used)
}

// Exhausted сообщает, исчерпана ли квота. Неограниченная квота не исчерпывается.
func Exhausted(remaining *int) bool {
	return remaining != nil && *remaining == 0
}

// Annotate дополняет подарок сведениями об использовании квоты.
func Annotate(g model.Gift, used int) model.GiftWithQuota {
	return model.GiftWithQuota{
		Gift:           g,
		UsedThisMonth:  used,
		RemainingQuota: RemainingFor(g, used),
	}
}
