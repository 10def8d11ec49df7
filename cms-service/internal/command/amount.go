package command

import (
	"github.com/cardbank/cms/shared/models"
	"github.com/shopspring/decimal"
)

func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && hasMoneyScale(amount)
}

func hasMoneyScale(amount decimal.Decimal) bool {
	return amount.Round(models.MoneyScale).Equal(amount)
}
