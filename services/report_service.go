package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"piggybank/models"
)

// Веса компонентов оценки финансового здоровья
const (
	weightSavingsRate = 0.45
	weightRunway      = 0.35
	weightStability   = 0.20

	runwayTargetMonths = 6.0
)

// MonthlyPoint доходы и расходы за календарный месяц
type MonthlyPoint struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// CategoryTotal расходы по категории
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// SummaryTotals итоги периода
type SummaryTotals struct {
	Income       decimal.Decimal `json:"income"`
	Expenses     decimal.Decimal `json:"expenses"`
	AvgIncome    decimal.Decimal `json:"avg_income"`
	AvgExpenses  decimal.Decimal `json:"avg_expenses"`
	NetLiquid    decimal.Decimal `json:"net_liquid"`
	RunwayMonths float64         `json:"runway_months"`
}

// ScoreComponents нормированные компоненты оценки, 0..100
type ScoreComponents struct {
	SavingsRate int `json:"savings_rate"`
	RunwayNorm  int `json:"runway_norm"`
	Stability   int `json:"stability"`
}

// Summary отчет о финансовом состоянии пользователя
type Summary struct {
	Since      string          `json:"since"`
	Months     int             `json:"months"`
	Monthly    []MonthlyPoint  `json:"monthly"`
	Categories []CategoryTotal `json:"categories"`
	Totals     SummaryTotals   `json:"totals"`
	Score      int             `json:"score"`
	Components ScoreComponents `json:"components"`
}

// ReportService строит отчеты только на чтение, без транзакций
type ReportService struct {
	db            *gorm.DB
	defaultMonths int
	now           func() time.Time
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(db *gorm.DB, defaultMonths int) *ReportService {
	return &ReportService{
		db:            db,
		defaultMonths: clampMonths(defaultMonths),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Summary считает ряды, категории, итоги и оценку за последние months месяцев
// (1..12, месяц считается как 30 дней). Проводки копилок не учитываются.
func (s *ReportService) Summary(ctx context.Context, userID string, months int) (*Summary, error) {
	if months == 0 {
		months = s.defaultMonths
	}
	months = clampMonths(months)
	since := truncateDay(s.now().AddDate(0, 0, -30*months))
	db := s.db.WithContext(ctx)

	var txns []models.Transaction
	err := db.Model(&models.Transaction{}).
		Select("transactions.date, transactions.type, transactions.amount, transactions.category").
		Joins("JOIN accounts ON accounts.account_id = transactions.account_id").
		Where("accounts.user_id = ? AND transactions.date >= ? AND transactions.piggy_id IS NULL", userID, since).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении транзакций: %w", err)
	}

	var balances []decimal.Decimal
	if err := db.Model(&models.Account{}).Where("user_id = ?", userID).Pluck("balance", &balances).Error; err != nil {
		return nil, fmt.Errorf("ошибка при чтении счетов: %w", err)
	}
	var piggies []decimal.Decimal
	if err := db.Model(&models.PiggyBank{}).
		Where("user_id = ? AND status <> ?", userID, models.PiggyStatusDeleted).
		Pluck("current_amount", &piggies).Error; err != nil {
		return nil, fmt.Errorf("ошибка при чтении копилок: %w", err)
	}
	liquidity := decimal.Sum(decimal.Zero, append(balances, piggies...)...)

	summary := summarize(txns, liquidity, months)
	summary.Since = since.Format(dateLayout)
	return summary, nil
}

// summarize чистая агрегация по уже отобранным транзакциям
func summarize(txns []models.Transaction, liquidity decimal.Decimal, months int) *Summary {
	monthly := map[string]*MonthlyPoint{}
	categories := map[string]decimal.Decimal{}

	for _, t := range txns {
		if t.PiggyID != nil {
			continue
		}
		key := t.Date.UTC().Format("2006-01")
		point, ok := monthly[key]
		if !ok {
			point = &MonthlyPoint{Month: key, Income: decimal.Zero, Expenses: decimal.Zero}
			monthly[key] = point
		}
		switch t.Type {
		case models.TransactionTypeCredit:
			point.Income = point.Income.Add(t.Amount)
		case models.TransactionTypeDebit:
			spent := t.Amount.Neg()
			point.Expenses = point.Expenses.Add(spent)
			category := t.Category
			if category == "" {
				category = "Other"
			}
			categories[category] = categories[category].Add(spent)
		}
	}

	keys := make([]string, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	series := make([]MonthlyPoint, 0, len(keys))
	income, expenses := decimal.Zero, decimal.Zero
	monthlyExpenses := make([]float64, 0, len(keys))
	for _, k := range keys {
		p := *monthly[k]
		series = append(series, p)
		income = income.Add(p.Income)
		expenses = expenses.Add(p.Expenses)
		monthlyExpenses = append(monthlyExpenses, p.Expenses.InexactFloat64())
	}

	byCategory := make([]CategoryTotal, 0, len(categories))
	for name, amount := range categories {
		if amount.IsPositive() {
			byCategory = append(byCategory, CategoryTotal{Category: name, Amount: amount})
		}
	}
	sort.Slice(byCategory, func(i, j int) bool {
		if !byCategory[i].Amount.Equal(byCategory[j].Amount) {
			return byCategory[i].Amount.GreaterThan(byCategory[j].Amount)
		}
		return byCategory[i].Category < byCategory[j].Category
	})

	divisor := len(keys)
	if divisor == 0 {
		divisor = months
	}
	avgIncome := income.Div(decimal.NewFromInt(int64(divisor)))
	avgExpenses := expenses.Div(decimal.NewFromInt(int64(divisor)))

	score := wellnessScore(income.InexactFloat64(), expenses.InexactFloat64(),
		avgExpenses.InexactFloat64(), liquidity.InexactFloat64(), monthlyExpenses)

	return &Summary{
		Months:     months,
		Monthly:    series,
		Categories: byCategory,
		Totals: SummaryTotals{
			Income:       income.Round(2),
			Expenses:     expenses.Round(2),
			AvgIncome:    avgIncome.Round(2),
			AvgExpenses:  avgExpenses.Round(2),
			NetLiquid:    liquidity.Round(2),
			RunwayMonths: math.Round(score.runwayMonths*10) / 10,
		},
		Score: score.total,
		Components: ScoreComponents{
			SavingsRate: int(math.Round(score.savingsRate * 100)),
			RunwayNorm:  int(math.Round(score.runwayNorm * 100)),
			Stability:   int(math.Round(score.stability * 100)),
		},
	}
}

type scoreParts struct {
	total        int
	savingsRate  float64
	runwayNorm   float64
	stability    float64
	runwayMonths float64
}

// wellnessScore комбинирует норму сбережений, запас ликвидности и
// стабильность расходов в оценку 0..100
func wellnessScore(income, expenses, avgExpenses, liquidity float64, monthlyExpenses []float64) scoreParts {
	var p scoreParts

	if income > 0 {
		p.savingsRate = clamp01((income - expenses) / income)
	}

	p.runwayMonths = runwayTargetMonths
	if avgExpenses > 0 {
		p.runwayMonths = liquidity / avgExpenses
	}
	if math.IsNaN(p.runwayMonths) || math.IsInf(p.runwayMonths, 0) {
		p.runwayMonths = runwayTargetMonths
	}
	p.runwayNorm = clamp01(p.runwayMonths / runwayTargetMonths)

	values := monthlyExpenses
	if len(values) == 0 {
		values = []float64{avgExpenses}
	}
	p.stability = 1
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean > 0 && len(values) > 1 {
		variance := 0.0
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(values) - 1)
		p.stability = clamp01(1 - math.Sqrt(variance)/mean)
	}

	p.total = int(math.Round((p.savingsRate*weightSavingsRate + p.runwayNorm*weightRunway + p.stability*weightStability) * 100))
	return p
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampMonths(months int) int {
	if months < 1 {
		return 1
	}
	if months > 12 {
		return 12
	}
	return months
}
